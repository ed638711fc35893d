package policy

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rootgc/rootgc/pkg/gcroot"
)

// Profile is a rule pruning the numbered generations of one profile by
// recency, count, or system-boot relevance.
type Profile struct {
	// Enable toggles the policy. Defaults to true.
	Enable *bool `json:"enable,omitempty" jsonschema:"title=Enable"`

	// ProfilePaths lists the profile symlinks governed by this policy. Each
	// path must be absolute or start with `~`.
	ProfilePaths []string `json:"profilePaths" jsonschema:"title=Profile Paths"`

	// KeepSince keeps every generation younger than or equal to this age.
	KeepSince *Duration `json:"keepSince,omitempty" jsonschema:"title=Keep Since"`

	// KeepLatestN keeps the N newest generations by generation number.
	KeepLatestN *int `json:"keepLatestN,omitempty" jsonschema:"title=Keep Latest N"`

	// KeepCurrentSystem keeps the currently activated system generation.
	// Only meaningful for system profiles. Defaults to true.
	KeepCurrentSystem *bool `json:"keepCurrentSystem,omitempty" jsonschema:"title=Keep Current System"`

	// KeepBootedSystem keeps the generation the system was booted from.
	// Only meaningful for system profiles. Defaults to true.
	KeepBootedSystem *bool `json:"keepBootedSystem,omitempty" jsonschema:"title=Keep Booted System"`
}

// Enabled reports whether the policy participates in a run.
func (p *Profile) Enabled() bool {
	return p.Enable == nil || *p.Enable
}

func (p *Profile) keepCurrentSystem() bool {
	return p.KeepCurrentSystem == nil || *p.KeepCurrentSystem
}

func (p *Profile) keepBootedSystem() bool {
	return p.KeepBootedSystem == nil || *p.KeepBootedSystem
}

// Validate checks load-time invariants for an enabled policy.
func (p *Profile) Validate(name string) error {
	if !p.Enabled() {
		return nil
	}

	if p.KeepSince == nil && p.KeepLatestN == nil {
		return fmt.Errorf(
			"invalid profile policy %q: at least one of keepSince and keepLatestN must be set",
			name,
		)
	}

	if len(p.ProfilePaths) == 0 {
		return fmt.Errorf("invalid profile policy %q: profilePaths must not be empty", name)
	}

	for _, path := range p.ProfilePaths {
		if !strings.HasPrefix(path, "~") && !filepath.IsAbs(path) {
			return fmt.Errorf(
				"invalid profile policy %q: profile path %q must be absolute or start with `~`",
				name, path,
			)
		}
	}

	return nil
}

// Evaluate returns the generations of profile that no keep-predicate claims,
// in the profile's newest-first order. The predicates are OR-combined: each
// may add keeps, none may revoke a keep set by another.
func (p *Profile) Evaluate(profile *gcroot.Profile, amb gcroot.Ambient) []gcroot.Generation {
	keep := make([]bool, len(profile.Generations))

	p.keepCurrentGeneration(profile, keep)

	if p.keepBootedSystem() && amb.BootedSystem != "" {
		keepByStorePath(profile, amb.BootedSystem, keep)
	}
	if p.keepCurrentSystem() && amb.CurrentSystem != "" {
		keepByStorePath(profile, amb.CurrentSystem, keep)
	}

	if p.KeepSince != nil {
		maxAge := time.Duration(*p.KeepSince)
		for i, g := range profile.Generations {
			if g.Root.Age <= maxAge {
				keep[i] = true
			}
		}
	}

	if p.KeepLatestN != nil {
		// Generations are already sorted by number descending.
		n := min(*p.KeepLatestN, len(profile.Generations))
		for i := range n {
			keep[i] = true
		}
	}

	var candidates []gcroot.Generation

	for i, g := range profile.Generations {
		if !keep[i] {
			candidates = append(candidates, g)
		}
	}

	return candidates
}

// keepCurrentGeneration keeps the generation whose link file name equals the
// file name of the profile's own target. Only one generation can be current,
// so only the first match is kept.
func (p *Profile) keepCurrentGeneration(profile *gcroot.Profile, keep []bool) {
	current := filepath.Base(profile.CurrentGeneration)

	for i, g := range profile.Generations {
		if filepath.Base(g.Root.Path) == current {
			keep[i] = true

			return
		}
	}
}

func keepByStorePath(profile *gcroot.Profile, storePath string, keep []bool) {
	for i, g := range profile.Generations {
		if g.Root.StorePath == storePath {
			keep[i] = true

			return
		}
	}
}

// NamedProfile pairs a policy with its configured name.
type NamedProfile struct {
	*Profile

	Name string
}

// SortedProfiles materializes the enabled policies of m ordered by name, so
// run output is deterministic.
func SortedProfiles(m map[string]*Profile) []NamedProfile {
	result := make([]NamedProfile, 0, len(m))

	for name, p := range m {
		if !p.Enabled() {
			continue
		}

		result = append(result, NamedProfile{Name: name, Profile: p})
	}

	slices.SortFunc(result, func(a, b NamedProfile) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result
}
