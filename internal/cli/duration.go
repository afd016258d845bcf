package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

const day = 24 * time.Hour

// parseHumanDuration accepts day ("30d") and week ("2w") counts on top of
// the units time.ParseDuration knows.
func parseHumanDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, domain.Errorf(domain.ErrValidation, "duration cannot be empty")
	}
	switch {
	case strings.HasSuffix(value, "d"):
		return parseCount(strings.TrimSuffix(value, "d"), day)
	case strings.HasSuffix(value, "w"):
		return parseCount(strings.TrimSuffix(value, "w"), 7*day)
	case strings.HasSuffix(value, "h") || strings.HasSuffix(value, "m") || strings.HasSuffix(value, "s"):
		dur, err := time.ParseDuration(value)
		if err != nil {
			return 0, domain.Wrap(domain.ErrValidation, err, "invalid duration %q", value)
		}
		if dur < 0 {
			return 0, domain.Errorf(domain.ErrValidation, "duration cannot be negative")
		}
		return dur, nil
	}
	return 0, domain.Errorf(domain.ErrValidation, "unsupported duration format: %s", value)
}

func parseCount(value string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.Wrap(domain.ErrValidation, err, "invalid duration count %q", value)
	}
	if n < 0 {
		return 0, domain.Errorf(domain.ErrValidation, "duration cannot be negative")
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return 0, domain.Errorf(domain.ErrValidation, "duration %q is too large", value)
	}
	return time.Duration(n) * unit, nil
}

// humanizeDuration prints whole days as "30d" and anything else the way
// time.Duration does.
func humanizeDuration(d time.Duration) string {
	if d >= day && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}
