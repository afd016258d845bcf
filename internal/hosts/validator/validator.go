package validator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

var (
	reservedNamePattern = regexp.MustCompile(`^(?i)(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
	invalidCharsPattern = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Validator checks profile names before they become file names.
type Validator struct{}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{}
}

// ValidateName reports why name cannot be used as a profile name, or nil.
//
// Profile names are stored verbatim as "<name>.hosts" inside the profiles
// directory, so the checks reject anything that would escape that directory
// or that Windows refuses as a file name:
//   - empty or whitespace-only names, and names with surrounding whitespace
//   - dot navigation (. or ..)
//   - null bytes and other control characters
//   - path separators and other invalid filesystem characters (<>:"/\|?*)
//   - reserved Windows device names (CON, PRN, AUX, NUL, COM1-9, LPT1-9)
//
// Names are case-sensitive and otherwise unrestricted; printable Unicode is
// accepted.
func (v *Validator) ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return domain.ErrProfileNameEmpty
	}
	if trimmed != name {
		return domain.ErrProfileNameWhitespace
	}
	if name == "." || name == ".." {
		return domain.ErrProfileNameDot
	}
	if strings.ContainsRune(name, 0) {
		return domain.ErrProfileNameNullByte
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return domain.ErrProfileNameNonPrintable
		}
	}
	if invalidCharsPattern.MatchString(name) {
		return domain.ErrProfileNameInvalidChars
	}
	if reservedNamePattern.MatchString(name) {
		return domain.ErrProfileNameReserved
	}
	return nil
}
