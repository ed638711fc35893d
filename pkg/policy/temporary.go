package policy

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rootgc/rootgc/pkg/expr"
	"github.com/rootgc/rootgc/pkg/gcroot"
)

// DefaultPriority is used when a temporary-root policy does not set one.
const DefaultPriority = 100

var (
	// DefaultIgnorePrefixes exempts the profiles tree, which is governed by
	// profile policies instead.
	DefaultIgnorePrefixes = []string{"/nix/var/nix/profiles"}

	// DefaultIgnorePrefixesInHome exempts per-user profile state.
	DefaultIgnorePrefixesInHome = []string{
		".local/state/nix/profiles",
		".local/state/home-manager/gcroots",
		".cache/nix/flake-registry.json",
	}
)

// TemporaryRoot is a rule matching ad hoc GC roots by path pattern and
// pruning them by age.
type TemporaryRoot struct {
	pathRegex    *regexp.Regexp
	matchProgram *expr.Program

	// Enable toggles the policy. Defaults to true.
	Enable *bool `json:"enable,omitempty" jsonschema:"title=Enable"`

	// Priority orders evaluation; lower numbers are evaluated first. Policies
	// with equal priority are ordered by name.
	Priority *int `json:"priority,omitempty" jsonschema:"title=Priority"`

	// PathRegex must match the target path of a root for it to be monitored.
	PathRegex string `json:"pathRegex" jsonschema:"title=Path Regex,format=regex"`

	// Match is an optional CEL expression over `path` and `gcRoot`, evaluated
	// after the regex. A false result leaves the root unmonitored.
	Match string `json:"match,omitempty" jsonschema:"title=Match Expression"`

	// Filter is an optional external decision program, consulted last.
	Filter *Filter `json:"filter,omitempty" jsonschema:"title=Filter"`

	// IgnorePrefixes lists absolute path prefixes that are never monitored.
	IgnorePrefixes []string `json:"ignorePrefixes,omitempty" jsonschema:"title=Ignore Prefixes"`

	// IgnorePrefixesInHome lists prefixes resolved against the home directory
	// of the root's owning user.
	IgnorePrefixesInHome []string `json:"ignorePrefixesInHome,omitempty" jsonschema:"title=Ignore Prefixes In Home"`

	// Period is the retention period. Roots older than it are expired.
	// Required when the policy is enabled.
	Period *Duration `json:"period,omitempty" jsonschema:"title=Retention Period"`
}

// Enabled reports whether the policy participates in a run.
func (p *TemporaryRoot) Enabled() bool {
	return p.Enable == nil || *p.Enable
}

// GetPriority returns the effective evaluation priority.
func (p *TemporaryRoot) GetPriority() int {
	if p.Priority == nil {
		return DefaultPriority
	}

	return *p.Priority
}

// EnsureDefaults initializes unset fields to their default values.
func (p *TemporaryRoot) EnsureDefaults() {
	if p.IgnorePrefixes == nil {
		p.IgnorePrefixes = DefaultIgnorePrefixes
	}
	if p.IgnorePrefixesInHome == nil {
		p.IgnorePrefixesInHome = DefaultIgnorePrefixesInHome
	}
}

// Compile compiles the path regex and the optional match expression.
func (p *TemporaryRoot) Compile() error {
	if p.pathRegex == nil {
		re, err := regexp.Compile(p.PathRegex)
		if err != nil {
			return fmt.Errorf("compile path regex %q: %w", p.PathRegex, err)
		}

		p.pathRegex = re
	}

	if p.matchProgram == nil && p.Match != "" {
		prg, err := expr.Compile(p.Match)
		if err != nil {
			return fmt.Errorf("compile match expression: %w", err)
		}

		p.matchProgram = prg
	}

	return nil
}

// Validate checks load-time invariants for an enabled policy.
func (p *TemporaryRoot) Validate(name string) error {
	if !p.Enabled() {
		return nil
	}

	if p.PathRegex == "" {
		return fmt.Errorf("invalid temporary root policy %q: pathRegex must be set", name)
	}
	if p.Period == nil {
		return fmt.Errorf("invalid temporary root policy %q: period must be set", name)
	}

	return nil
}

// Expired reports whether root has outlived the retention period.
func (p *TemporaryRoot) Expired(root *gcroot.Root) bool {
	return p.Period != nil && root.Age > time.Duration(*p.Period)
}

// NamedTemporaryRoot pairs a policy with its configured name.
type NamedTemporaryRoot struct {
	*TemporaryRoot

	Name string
}

// SortedTemporaryRoots materializes the enabled policies of m as an ordered
// sequence keyed by (priority, name). The name tie-break makes the ordering
// fully deterministic.
func SortedTemporaryRoots(m map[string]*TemporaryRoot) []NamedTemporaryRoot {
	result := make([]NamedTemporaryRoot, 0, len(m))

	for name, p := range m {
		if !p.Enabled() {
			continue
		}

		result = append(result, NamedTemporaryRoot{Name: name, TemporaryRoot: p})
	}

	slices.SortFunc(result, func(a, b NamedTemporaryRoot) int {
		if c := cmp.Compare(a.GetPriority(), b.GetPriority()); c != 0 {
			return c
		}

		return strings.Compare(a.Name, b.Name)
	})

	return result
}

// Monitored reports whether root falls under this policy. A false return
// means the caller must try the next policy in priority order. Only a
// failing external filter invocation produces an error.
func (p NamedTemporaryRoot) Monitored(ctx context.Context, root *gcroot.Root, amb gcroot.Ambient) (bool, error) {
	if p.ignoredByPrefix(root.Path) || p.ignoredByPrefixInHome(root, amb) {
		slog.Debug("ignore root, path in ignore prefixes",
			slog.String("policy", p.Name),
			slog.String("path", root.Path),
		)

		return false, nil
	}

	if !p.pathRegex.MatchString(root.Path) {
		slog.Debug("ignore root, path does not match regex",
			slog.String("policy", p.Name),
			slog.String("path", root.Path),
			slog.String("regex", p.PathRegex),
		)

		return false, nil
	}

	if p.matchProgram != nil && !p.matchProgram.Match(root.Path, root.LinkPath) {
		slog.Debug("ignore root, match expression returned false",
			slog.String("policy", p.Name),
			slog.String("path", root.Path),
		)

		return false, nil
	}

	if p.Filter != nil {
		monitored, err := p.Filter.Run(ctx, FilterInput{
			Path:   root.Path,
			GCRoot: root.LinkPath,
		})
		if err != nil {
			return false, err
		}
		if !monitored {
			slog.Debug("ignore root, filtered out by external filter",
				slog.String("policy", p.Name),
				slog.String("path", root.Path),
			)

			return false, nil
		}
	}

	return true, nil
}

func (p *TemporaryRoot) ignoredByPrefix(target string) bool {
	for _, prefix := range p.IgnorePrefixes {
		if hasPathPrefix(target, prefix) {
			return true
		}
	}

	return false
}

// ignoredByPrefixInHome resolves the home-relative prefixes against the home
// of the target's owning user. An unknown owner never excludes.
func (p *TemporaryRoot) ignoredByPrefixInHome(root *gcroot.Root, amb gcroot.Ambient) bool {
	if len(p.IgnorePrefixesInHome) == 0 || amb.LookupHome == nil {
		return false
	}

	home, ok := amb.LookupHome(root.UID)
	if !ok {
		return false
	}

	for _, prefix := range p.IgnorePrefixesInHome {
		if hasPathPrefix(root.Path, filepath.Join(home, prefix)) {
			return true
		}
	}

	return false
}

func hasPathPrefix(path, prefix string) bool {
	prefix = filepath.Clean(prefix)

	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}
