package core

import "errors"

// Common errors.
var (
	ErrFieldExists     = errors.New("live field with name already exists")
	ErrFieldNotFound   = errors.New("field not found")
	ErrNotLive         = errors.New("field is not a live field")
	ErrUnmapped        = errors.New("field is not mapped in the workspace")
	ErrUntestedVersion = errors.New("globalsearch version is newer than the maximum tested version")
)
