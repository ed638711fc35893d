package run

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a confirmation is required but stdin is
// not a terminal.
var ErrNotInteractive = errors.New("not running interactively")

// Prompter asks the user whether to continue with pending removals.
type Prompter interface {
	Confirm(ctx context.Context) (bool, error)
}

// TerminalPrompter renders a confirmation form on the terminal.
type TerminalPrompter struct{}

func (TerminalPrompter) Confirm(ctx context.Context) (bool, error) {
	// Check if we're running interactively.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotInteractive
	}

	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Do you want to continue?").
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).
		WithShowHelp(false)

	err := form.RunWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("run confirmation prompt: %w", err)
	}

	return confirmed, nil
}
