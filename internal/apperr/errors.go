package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrNotAFile             = errors.New("not a file")
	ErrInvalidPath          = errors.New("invalid path")
	ErrKindConflict         = errors.New("path already used by a node of another kind")
	ErrQuotaExceeded        = errors.New("storage quota exceeded")
	ErrToolchainUnavailable = errors.New("bundler toolchain unavailable")
	ErrRetryBackoff         = errors.New("retry suppressed after repeated identical failures")
	ErrInvalidSnapshot      = errors.New("invalid project snapshot")
	ErrTooLarge             = errors.New("import exceeds size limits")
	ErrInvalidArchive       = errors.New("invalid archive")
)
