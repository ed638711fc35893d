package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptyCommand is returned when a command is empty.
var ErrEmptyCommand = errors.New("empty command")

// Result represents the result of a command execution. A non-zero ExitCode
// is a successful execution with a negative answer, not an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command manages common command execution properties.
type Command struct {
	tracer trace.Tracer

	// Command is the program to execute.
	Command string `json:"command" jsonschema:"title=Command,pattern=^\\S+$"`
	// Args contains the command line arguments.
	Args []string `json:"args,omitempty" jsonschema:"title=Arguments" yaml:"args,flow,omitempty"`
}

// NewCommand creates a new [Command].
func NewCommand(program string, args ...string) Command {
	return Command{
		Command: program,
		Args:    args,
	}
}

// ExecWithStdin runs the command with stdin piped in and stdout/stderr
// captured. stdin is fully written and closed before the command is waited
// on, so well-behaved children terminate on EOF.
//
// The returned error covers spawn and wait failures only; a command that ran
// to completion with a non-zero status yields a nil error and a [Result]
// carrying the exit code.
func (c *Command) ExecWithStdin(ctx context.Context, stdin []byte) (*Result, error) {
	if c.Command == "" {
		return nil, ErrEmptyCommand
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer("execs")
	}

	ctx, span := c.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", c.String()),
	))
	defer span.End()

	start := time.Now()

	//nolint:gosec // G204: the program comes from operator configuration.
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = exitErr.ExitCode()

			slog.DebugContext(ctx, "command exited non-zero",
				slog.String("command", c.String()),
				slog.Int("code", result.ExitCode),
				slog.Duration("duration", time.Since(start)),
			)

			return result, nil
		}

		return nil, fmt.Errorf("run %q: %w", c.String(), err)
	}

	slog.DebugContext(ctx, "command executed successfully",
		slog.String("command", c.String()),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}

	return fmt.Sprintf("%s %s", c.Command, strings.Join(c.Args, " "))
}
