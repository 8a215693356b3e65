package globalsearch

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/aretw0/livefield/pkg/core"
)

// MaxTestedVersion is the newest server release the tool was verified against.
const MaxTestedVersion = "6.3.188.0"

// ServerVersion is a four part GlobalSearch version (major.minor.patch.build).
type ServerVersion struct {
	release *semver.Version
	build   uint64
}

// ParseVersion parses versions such as "6.3.188.0". Missing parts are zero.
func ParseVersion(raw string) (ServerVersion, error) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	parts := strings.Split(s, ".")
	if s == "" || len(parts) > 4 {
		return ServerVersion{}, fmt.Errorf("invalid globalsearch version %q", raw)
	}

	release := parts
	var build uint64
	if len(parts) == 4 {
		release = parts[:3]
		b, err := strconv.ParseUint(parts[3], 10, 64)
		if err != nil {
			return ServerVersion{}, fmt.Errorf("invalid globalsearch version %q: %w", raw, err)
		}
		build = b
	}

	v, err := semver.NewVersion(strings.Join(release, "."))
	if err != nil {
		return ServerVersion{}, fmt.Errorf("invalid globalsearch version %q: %w", raw, err)
	}
	return ServerVersion{release: v, build: build}, nil
}

// Compare returns -1, 0 or 1 when v is older, equal or newer than o.
func (v ServerVersion) Compare(o ServerVersion) int {
	if c := v.release.Compare(o.release); c != 0 {
		return c
	}
	switch {
	case v.build < o.build:
		return -1
	case v.build > o.build:
		return 1
	}
	return 0
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.release.Major(), v.release.Minor(), v.release.Patch(), v.build)
}

// CheckVersion gates servers newer than MaxTestedVersion. With ignore set the
// gate only logs a warning.
func CheckVersion(raw string, ignore bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	v, err := ParseVersion(raw)
	if err != nil {
		return err
	}
	maxTested, _ := ParseVersion(MaxTestedVersion)

	if v.Compare(maxTested) <= 0 {
		return nil
	}
	if ignore {
		logger.Warn("ignoring version compatibility", "server", v.String(), "max_tested", MaxTestedVersion)
		return nil
	}
	return fmt.Errorf("%w: server %s, max tested %s", core.ErrUntestedVersion, v, MaxTestedVersion)
}
