package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ErrInvalidDuration is returned when a duration string cannot be parsed.
var ErrInvalidDuration = errors.New("invalid duration")

var durationPattern = regexp.MustCompile(`([0-9]*\.?[0-9]+)(ns|us|µs|ms|s|m|h|d|w)`)

// Duration is a [time.Duration] that additionally accepts day (`d`) and week
// (`w`) units in configuration files, e.g. "30d" or "1w12h".
type Duration time.Duration

// ParseDuration parses s into a [Duration]. A day is 24 hours and a week is
// 7 days; no calendar arithmetic is performed.
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}

	var (
		total    time.Duration
		consumed int
	)

	for _, m := range durationPattern.FindAllStringSubmatch(s, -1) {
		consumed += len(m[0])

		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}

		var unit time.Duration

		switch m[2] {
		case "ns":
			unit = time.Nanosecond
		case "us", "µs":
			unit = time.Microsecond
		case "ms":
			unit = time.Millisecond
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		}

		total += time.Duration(value * float64(unit))
	}

	// Reject inputs with leftover characters, e.g. "10x" or "5d garbage".
	if consumed != len(strings.TrimSpace(s)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	return Duration(total), nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	v := time.Duration(d)
	day := 24 * time.Hour

	if v >= day && v%day == 0 {
		return strconv.FormatInt(int64(v/day), 10) + "d"
	}

	return v.String()
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// JSONSchema implements the jsonschema interface to describe the extended
// duration syntax.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: "A duration with optional day (d) and week (w) units, e.g. \"30d\" or \"36h\".",
		Pattern:     `^([0-9]*\.?[0-9]+(ns|us|µs|ms|s|m|h|d|w))+$`,
	}
}
