package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/gcroot"
	"github.com/rootgc/rootgc/pkg/policy"
)

func durationPtr(d time.Duration) *policy.Duration {
	p := policy.Duration(d)

	return &p
}

func intPtr(n int) *int {
	return &n
}

func boolPtr(b bool) *bool {
	return &b
}

func newTemporaryPolicy(t *testing.T, name string, p *policy.TemporaryRoot) policy.NamedTemporaryRoot {
	t.Helper()

	p.EnsureDefaults()
	require.NoError(t, p.Validate(name))
	require.NoError(t, p.Compile())

	return policy.NamedTemporaryRoot{Name: name, TemporaryRoot: p}
}

func TestTemporaryRoot_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		policy  *policy.TemporaryRoot
		wantErr bool
	}{
		"complete": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
				Period:    durationPtr(7 * 24 * time.Hour),
			},
		},
		"missing period": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
			},
			wantErr: true,
		},
		"missing path regex": {
			policy: &policy.TemporaryRoot{
				Period: durationPtr(time.Hour),
			},
			wantErr: true,
		},
		"disabled policies are not validated": {
			policy: &policy.TemporaryRoot{
				Enable: boolPtr(false),
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tc.policy.Validate("test")

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSortedTemporaryRoots(t *testing.T) {
	t.Parallel()

	policies := map[string]*policy.TemporaryRoot{
		"b-default": {PathRegex: ".*", Period: durationPtr(time.Hour)},
		"a-default": {PathRegex: ".*", Period: durationPtr(time.Hour)},
		"urgent":    {PathRegex: ".*", Period: durationPtr(time.Hour), Priority: intPtr(10)},
		"disabled":  {PathRegex: ".*", Period: durationPtr(time.Hour), Enable: boolPtr(false)},
	}

	sorted := policy.SortedTemporaryRoots(policies)

	names := make([]string, 0, len(sorted))
	for _, p := range sorted {
		names = append(names, p.Name)
	}

	// Lower priority number first, then lexicographic by name. Disabled
	// policies never participate.
	assert.Equal(t, []string{"urgent", "a-default", "b-default"}, names)
}

func TestNamedTemporaryRoot_Monitored(t *testing.T) {
	t.Parallel()

	amb := gcroot.Ambient{
		LookupHome: func(uid uint32) (string, bool) {
			if uid == 1000 {
				return "/home/alice", true
			}

			return "", false
		},
	}

	tcs := map[string]struct {
		policy *policy.TemporaryRoot
		root   *gcroot.Root
		want   bool
	}{
		"regex match": {
			policy: &policy.TemporaryRoot{PathRegex: `/result$`, Period: durationPtr(time.Hour)},
			root:   &gcroot.Root{Path: "/tmp/build/result", UID: 1000},
			want:   true,
		},
		"regex non-match": {
			policy: &policy.TemporaryRoot{PathRegex: `/result$`, Period: durationPtr(time.Hour)},
			root:   &gcroot.Root{Path: "/tmp/build/output", UID: 1000},
			want:   false,
		},
		"default ignore prefix": {
			policy: &policy.TemporaryRoot{PathRegex: ".*", Period: durationPtr(time.Hour)},
			root:   &gcroot.Root{Path: "/nix/var/nix/profiles/system-12-link", UID: 1000},
			want:   false,
		},
		"ignore prefix in home": {
			policy: &policy.TemporaryRoot{PathRegex: ".*", Period: durationPtr(time.Hour)},
			root:   &gcroot.Root{Path: "/home/alice/.local/state/nix/profiles/profile-3-link", UID: 1000},
			want:   false,
		},
		"unknown owner never excludes": {
			policy: &policy.TemporaryRoot{PathRegex: ".*", Period: durationPtr(time.Hour)},
			root:   &gcroot.Root{Path: "/home/ghost/.local/state/nix/profiles/profile-3-link", UID: 4242},
			want:   true,
		},
		"match expression true": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
				Match:     `pathBase(path) == "result"`,
				Period:    durationPtr(time.Hour),
			},
			root: &gcroot.Root{Path: "/tmp/build/result", UID: 1000},
			want: true,
		},
		"match expression false": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
				Match:     `pathBase(path) == "result"`,
				Period:    durationPtr(time.Hour),
			},
			root: &gcroot.Root{Path: "/tmp/build/output", UID: 1000},
			want: false,
		},
		"filter keeps on exit zero": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
				Filter:    shFilter("exit 0"),
				Period:    durationPtr(time.Hour),
			},
			root: &gcroot.Root{Path: "/tmp/build/result", UID: 1000},
			want: true,
		},
		"filter ignores on non-zero exit": {
			policy: &policy.TemporaryRoot{
				PathRegex: ".*",
				Filter:    shFilter("exit 1"),
				Period:    durationPtr(time.Hour),
			},
			root: &gcroot.Root{Path: "/tmp/build/result", UID: 1000},
			want: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := newTemporaryPolicy(t, "test", tc.policy)

			got, err := p.Monitored(t.Context(), tc.root, amb)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNamedTemporaryRoot_Monitored_FilterError(t *testing.T) {
	t.Parallel()

	p := newTemporaryPolicy(t, "test", &policy.TemporaryRoot{
		PathRegex: ".*",
		Filter:    &policy.Filter{Command: newCommand("definitely-not-a-real-program")},
		Period:    durationPtr(time.Hour),
	})

	_, err := p.Monitored(t.Context(), &gcroot.Root{Path: "/tmp/result"}, gcroot.Ambient{})
	require.Error(t, err)
}

func TestTemporaryRoot_Expired(t *testing.T) {
	t.Parallel()

	p := &policy.TemporaryRoot{
		PathRegex: ".*",
		Period:    durationPtr(30 * 24 * time.Hour),
	}

	// A root exactly at the period boundary is not expired.
	assert.False(t, p.Expired(&gcroot.Root{Age: 30 * 24 * time.Hour}))
	assert.False(t, p.Expired(&gcroot.Root{Age: time.Hour}))
	assert.True(t, p.Expired(&gcroot.Root{Age: 30*24*time.Hour + time.Second}))
}
