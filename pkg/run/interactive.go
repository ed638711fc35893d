package run

import "fmt"

// Interactive selects how removals are confirmed.
type Interactive string

const (
	// InteractiveNever removes without confirmation.
	InteractiveNever Interactive = "never"

	// InteractiveOnce lists all candidates, then asks a single confirmation
	// covering the whole batch.
	InteractiveOnce Interactive = "once"

	// InteractiveAlways asks one confirmation per candidate.
	InteractiveAlways Interactive = "always"
)

// ParseInteractive validates an interactivity mode given on the command
// line.
func ParseInteractive(s string) (Interactive, error) {
	switch Interactive(s) {
	case InteractiveNever, InteractiveOnce, InteractiveAlways:
		return Interactive(s), nil
	}

	return "", fmt.Errorf("unknown interactive mode %q: must be never, once, or always", s)
}
