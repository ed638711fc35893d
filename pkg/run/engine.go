package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rootgc/rootgc/pkg/config"
	"github.com/rootgc/rootgc/pkg/gcroot"
	"github.com/rootgc/rootgc/pkg/policy"
)

// Options are the per-invocation knobs of a run.
type Options struct {
	Interactive      Interactive
	OutputPath       string
	OutputDelimiter  string
	DryRun           bool
	OutputUnbuffered bool
	NoStatistics     bool
}

// Engine executes one pruning pass over the configured root directories.
type Engine struct {
	tracer   trace.Tracer
	prompter Prompter
	stderr   io.Writer
	output   *Output

	classifier        *gcroot.Classifier
	temporaryPolicies []policy.NamedTemporaryRoot
	profilePolicies   []policy.NamedProfile

	cfg  *config.Config
	opts Options
	amb  gcroot.Ambient

	stats     Statistics
	nameWidth int
	ownedOnly bool
}

type Opt func(*Engine)

// WithAmbient overrides the sampled process environment.
func WithAmbient(amb gcroot.Ambient) Opt {
	return func(e *Engine) {
		e.amb = amb
	}
}

// WithPrompter overrides the confirmation prompter.
func WithPrompter(p Prompter) Opt {
	return func(e *Engine) {
		e.prompter = p
	}
}

// WithStderr overrides the destination for notifications and statistics.
func WithStderr(w io.Writer) Opt {
	return func(e *Engine) {
		e.stderr = w
	}
}

func New(cfg *config.Config, opts Options, engineOpts ...Opt) (*Engine, error) {
	e := &Engine{
		tracer:   otel.Tracer("run"),
		prompter: TerminalPrompter{},
		stderr:   os.Stderr,
		cfg:      cfg,
		opts:     opts,
		amb:      gcroot.CaptureAmbient(),
	}
	for _, opt := range engineOpts {
		opt(e)
	}

	e.ownedOnly = cfg.OwnedOnly.Instantiate(e.amb.UID)
	if e.ownedOnly {
		slog.Info("only monitoring GC roots owned by the current user")
	} else {
		slog.Info("monitoring all GC roots")
	}

	e.classifier = &gcroot.Classifier{
		Store:     cfg.Store,
		Ambient:   e.amb,
		OwnedOnly: e.ownedOnly,
	}

	e.temporaryPolicies = policy.SortedTemporaryRoots(cfg.TemporaryRootPolicies)
	e.profilePolicies = policy.SortedProfiles(cfg.ProfilePolicies)

	for _, p := range e.temporaryPolicies {
		e.nameWidth = max(e.nameWidth, len(p.Name))
	}
	for _, p := range e.profilePolicies {
		e.nameWidth = max(e.nameWidth, len(p.Name))
	}

	output, err := NewOutput(opts.OutputPath, opts.OutputDelimiter, opts.OutputUnbuffered)
	if err != nil {
		return nil, err
	}

	e.output = output

	return e, nil
}

// Statistics exposes the run counters.
func (e *Engine) Statistics() *Statistics {
	return &e.stats
}

// candidate is a root pending a batched confirmation.
type candidate struct {
	root       *gcroot.Root
	policyName string
}

// Run executes the pass. Already-removed files stay removed if an error
// aborts the run partway.
func (e *Engine) Run(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.Bool("dry_run", e.opts.DryRun),
		attribute.String("interactive", string(e.opts.Interactive)),
	))
	defer span.End()

	roots, err := e.collectRoots(ctx)
	if err != nil {
		return err
	}

	var waiting []candidate

	err = e.runTemporaryRootPolicies(ctx, roots, &waiting)
	if err != nil {
		return err
	}

	err = e.runProfilePolicies(ctx, roots, &waiting)
	if err != nil {
		return err
	}

	if len(waiting) > 0 {
		yes, err := e.prompter.Confirm(ctx)
		if err != nil {
			return fmt.Errorf("confirm removal: %w", err)
		}

		if yes {
			for _, c := range waiting {
				err := e.remove(c.policyName, c.root)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (e *Engine) collectRoots(ctx context.Context) ([]*gcroot.Root, error) {
	_, span := e.tracer.Start(ctx, "collect-roots")
	defer span.End()

	var roots []*gcroot.Root

	for _, dir := range e.cfg.Directories {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("open directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			e.stats.Traversed.Add(1)

			root, err := e.classifier.Classify(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}

			if root == nil {
				e.stats.Invalid.Add(1)

				continue
			}

			roots = append(roots, root)
		}
	}

	span.SetAttributes(attribute.Int("roots", len(roots)))

	return roots, nil
}

func (e *Engine) runTemporaryRootPolicies(ctx context.Context, roots []*gcroot.Root, waiting *[]candidate) error {
	ctx, span := e.tracer.Start(ctx, "temporary-root-policies")
	defer span.End()

	for _, root := range roots {
		var matched *policy.NamedTemporaryRoot

		for i := range e.temporaryPolicies {
			p := e.temporaryPolicies[i]

			monitored, err := p.Monitored(ctx, root, e.amb)
			if err != nil {
				return fmt.Errorf("policy %q: %w", p.Name, err)
			}

			if monitored {
				matched = &e.temporaryPolicies[i]

				break
			}
		}

		if matched == nil {
			slog.Debug("keep root, no matching temporary root policy",
				slog.String("path", root.Path),
			)

			continue
		}

		e.stats.Monitored.Add(1)

		if !matched.Expired(root) {
			continue
		}

		e.stats.Expired.Add(1)

		err := e.dispatch(ctx, matched.Name, root, waiting)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) runProfilePolicies(ctx context.Context, roots []*gcroot.Root, waiting *[]candidate) error {
	ctx, span := e.tracer.Start(ctx, "profile-policies")
	defer span.End()

	lookup := make(map[string]*gcroot.Root, len(roots))
	for _, root := range roots {
		lookup[root.Path] = root
	}

	for _, p := range e.profilePolicies {
		for _, profilePath := range p.ProfilePaths {
			path := e.amb.ExpandHome(profilePath)

			profile, err := gcroot.ReadProfile(path, lookup, e.ownedOnly, e.amb)
			if err != nil {
				return fmt.Errorf("read profile %s: %w", path, err)
			}

			if profile == nil {
				continue
			}

			e.stats.Monitored.Add(uint64(len(profile.Generations)))

			candidates := p.Evaluate(profile, e.amb)
			e.stats.Expired.Add(uint64(len(candidates)))

			for _, g := range candidates {
				err := e.dispatch(ctx, p.Name, g.Root, waiting)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// dispatch routes one expired root according to the interactivity mode.
func (e *Engine) dispatch(ctx context.Context, policyName string, root *gcroot.Root, waiting *[]candidate) error {
	switch e.opts.Interactive {
	case InteractiveAlways:
		e.notify(policyName, root, actionAboutToRemove)

		yes, err := e.prompter.Confirm(ctx)
		if err != nil {
			return fmt.Errorf("confirm removal: %w", err)
		}

		if yes {
			return e.remove(policyName, root)
		}

		e.notify(policyName, root, actionIgnore)

	case InteractiveOnce:
		e.notify(policyName, root, actionAboutToRemove)

		*waiting = append(*waiting, candidate{policyName: policyName, root: root})

	case InteractiveNever:
		return e.remove(policyName, root)
	}

	return nil
}

func (e *Engine) remove(policyName string, root *gcroot.Root) error {
	e.notify(policyName, root, actionRemove)

	path := e.pathToRemove(root)

	if !e.opts.DryRun {
		err := os.Remove(path)
		if err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	e.stats.Removed.Add(1)

	return e.output.Write(path)
}

// Finish prints the statistics block and flushes the output sink.
func (e *Engine) Finish() error {
	if !e.opts.NoStatistics {
		fmt.Fprintln(e.stderr, e.stats.Render(e.opts.DryRun))
	}

	return e.output.Close()
}

func (e *Engine) pathToRemove(root *gcroot.Root) string {
	if e.cfg.RemoveRoot {
		return root.LinkPath
	}

	return root.Path
}

type action int

const (
	actionRemove action = iota
	actionAboutToRemove
	actionIgnore
)

var (
	removeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	aboutToRemoveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	ignoreStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	ageStyle           = lipgloss.NewStyle().Bold(true)
)

func (a action) render() string {
	switch a {
	case actionRemove:
		return removeStyle.Render("Remove")
	case actionAboutToRemove:
		return aboutToRemoveStyle.Render("About to remove")
	case actionIgnore:
		return ignoreStyle.Render("Ignore")
	}

	return ""
}

func (e *Engine) notify(policyName string, root *gcroot.Root, a action) {
	indicator := ""
	if a == actionRemove && e.opts.DryRun {
		indicator = ageStyle.Render(" (dry-run)")
	}

	fmt.Fprintf(e.stderr, "[%-*s] %s%s %q (%s ago)\n",
		e.nameWidth, policyName,
		a.render(), indicator,
		e.pathToRemove(root),
		ageStyle.Render(formatAge(root.Age, e.amb.Now)),
	)
}

func formatAge(age time.Duration, now time.Time) string {
	return strings.TrimSpace(humanize.RelTime(now.Add(-age), now, "", ""))
}
