package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/mattn/go-shellwords"

	"github.com/rootgc/rootgc/pkg/execs"
	"github.com/rootgc/rootgc/pkg/yaml"
)

// FilterInput is the JSON object written to a filter's standard input.
type FilterInput struct {
	// Path is the target path of the GC root.
	Path string `json:"path"`
	// GCRoot is the path of the GC-root symlink.
	GCRoot string `json:"gc_root"`
}

// Filter is an external decision program. It receives a [FilterInput] JSON
// object on stdin and answers through its exit status: zero keeps the root
// monitored, anything else ignores it. Its stdout and stderr are diagnostic
// only and never parsed.
//
// In YAML a filter is either a mapping with `command` and `args`, or a
// single string split like a shell word list:
//
//	filter: "nix-gcroot-check --max-depth 2"
type Filter struct {
	execs.Command `json:",inline"`
}

// UnmarshalYAML implements [github.com/goccy/go-yaml.BytesUnmarshaler] to
// accept the string shorthand.
func (f *Filter) UnmarshalYAML(data []byte) error {
	var shorthand string
	if err := yaml.Unmarshal(data, &shorthand); err == nil {
		words, err := shellwords.Parse(shorthand)
		if err != nil {
			return fmt.Errorf("parse filter shorthand %q: %w", shorthand, err)
		}
		if len(words) == 0 {
			return fmt.Errorf("parse filter shorthand %q: %w", shorthand, execs.ErrEmptyCommand)
		}

		f.Command = execs.NewCommand(words[0], words[1:]...)

		return nil
	}

	var cmd execs.Command
	if err := yaml.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("parse filter: %w", err)
	}

	f.Command = cmd

	return nil
}

// JSONSchema implements the jsonschema interface to describe both accepted
// shapes.
func (Filter) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("command", &jsonschema.Schema{Type: "string", Title: "Command"})
	props.Set("args", &jsonschema.Schema{
		Type:  "array",
		Title: "Arguments",
		Items: &jsonschema.Schema{Type: "string"},
	})

	return &jsonschema.Schema{
		Title: "Filter",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "object", Properties: props, Required: []string{"command"}},
		},
	}
}

// Run invokes the filter for one GC root. The returned bool reports whether
// the root stays monitored. Spawn and wait failures are returned as errors;
// an unrunnable filter cannot be distinguished from a negative answer, so
// callers must treat them as fatal.
func (f *Filter) Run(ctx context.Context, in FilterInput) (bool, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return false, fmt.Errorf("serialize filter input: %w", err)
	}

	res, err := f.ExecWithStdin(ctx, data)
	if err != nil {
		return false, fmt.Errorf("run filter on %q: %w", in.Path, err)
	}

	if res.Stdout != "" {
		slog.Debug("filter stdout", slog.String("output", res.Stdout))
	}
	if res.Stderr != "" {
		slog.Warn("filter stderr", slog.String("output", res.Stderr))
	}

	return res.ExitCode == 0, nil
}
