package domain

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds. Every error returned by the hosts packages matches exactly one
// of these through errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("permission denied")
	ErrIO          = errors.New("i/o error")
	ErrParse       = errors.New("parse error")
	ErrEnvironment = errors.New("environment error")
)

// ErrFlushFailed marks a cache flush that failed after the hosts switch
// itself succeeded.
var ErrFlushFailed = errors.New("dns flush failed")

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrProfileNameEmpty        = errors.New("profile name cannot be empty")
	ErrProfileNameDot          = errors.New("profile name cannot be '.' or '..'")
	ErrProfileNameNonPrintable = errors.New("profile name contains non-printable characters")
	ErrProfileNameInvalidChars = errors.New("profile name contains invalid characters (<>:\"/\\|?*)")
	ErrProfileNameReserved     = errors.New("profile name is a reserved system filename")
	ErrProfileNameNullByte     = errors.New("profile name contains null byte")
	ErrProfileNameWhitespace   = errors.New("profile name cannot start or end with whitespace")
)

// Error is a classified failure. Kind is one of the Err* kind sentinels above;
// Err is the optional underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error without a cause.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind with a message prefix.
func Wrap(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// IO wraps a filesystem failure. Missing files become ErrNotFound and denied
// access becomes ErrPermission so callers can tell the cases apart.
func IO(cause error, format string, args ...any) error {
	kind := ErrIO
	switch {
	case errors.Is(cause, fs.ErrNotExist):
		kind = ErrNotFound
	case errors.Is(cause, fs.ErrPermission):
		kind = ErrPermission
	}
	return Wrap(kind, cause, format, args...)
}

// KindOf returns a short stable name for the kind of err, or "internal" when
// err carries no kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFlushFailed):
		return "flush"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrEnvironment):
		return "environment"
	case errors.Is(err, ErrIO):
		return "io"
	}
	return "internal"
}
