package livefield

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the release of the livefield module.
var Version = strings.TrimSpace(version)
