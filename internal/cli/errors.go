package cli

import (
	"errors"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

// ErrPromptCancelled indicates that the user aborted an interactive prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

// Exit codes by error kind.
const (
	ExitOK          = 0
	ExitInternal    = 1
	ExitValidation  = 2
	ExitConflict    = 3
	ExitNotFound    = 4
	ExitPermission  = 5
	ExitParse       = 6
	ExitEnvironment = 7
	ExitIO          = 8
	ExitFlush       = 9
	ExitCancelled   = 130
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrPromptCancelled) {
		return ExitCancelled
	}
	switch domain.KindOf(err) {
	case "flush":
		return ExitFlush
	case "validation":
		return ExitValidation
	case "conflict":
		return ExitConflict
	case "not_found":
		return ExitNotFound
	case "permission":
		return ExitPermission
	case "parse":
		return ExitParse
	case "environment":
		return ExitEnvironment
	case "io":
		return ExitIO
	}
	return ExitInternal
}
