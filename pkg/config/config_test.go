package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/config"
	"github.com/rootgc/rootgc/pkg/policy"
)

func durationPtr(d time.Duration) *policy.Duration {
	p := policy.Duration(d)

	return &p
}

func intPtr(n int) *int {
	return &n
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	c := config.NewConfig()

	assert.Equal(t, "rootgc.dev/v1beta1", c.APIVersion)
	assert.Equal(t, "Configuration", c.Kind)
	assert.Equal(t, "/nix/store", c.Store)
	assert.Equal(t, config.OwnedOnlyAuto, c.OwnedOnly)
	assert.Equal(t, []string{"/nix/var/nix/gcroots/auto"}, c.Directories)
	assert.False(t, c.RemoveRoot)

	require.NoError(t, c.Validate())
}

func TestConfigLoader_Load(t *testing.T) {
	t.Parallel()

	data := `
apiVersion: rootgc.dev/v1beta1
kind: Configuration
store: /nix/store
ownedOnly: "false"
removeRoot: true
directories:
  - /nix/var/nix/gcroots/auto
temporaryRootPolicies:
  result:
    priority: 50
    pathRegex: /result$
    period: 30d
    filter: "check-root --quick"
profilePolicies:
  system:
    profilePaths:
      - /nix/var/nix/profiles/system
    keepSince: 14d
    keepLatestN: 5
`

	cl := config.NewConfigLoaderFromBytes([]byte(data))
	require.NoError(t, cl.Validate())

	c, err := cl.Load()
	require.NoError(t, err)

	assert.Equal(t, config.OwnedOnlyFalse, c.OwnedOnly)
	assert.True(t, c.RemoveRoot)

	tr := c.TemporaryRootPolicies["result"]
	require.NotNil(t, tr)
	assert.Equal(t, 50, tr.GetPriority())
	assert.Equal(t, "/result$", tr.PathRegex)
	assert.Equal(t, 30*24*time.Hour, tr.Period.Std())
	require.NotNil(t, tr.Filter)
	assert.Equal(t, "check-root", tr.Filter.Command.Command)
	assert.Equal(t, []string{"--quick"}, tr.Filter.Command.Args)
	// Unset prefixes fall back to the defaults.
	assert.Equal(t, policy.DefaultIgnorePrefixes, tr.IgnorePrefixes)

	pp := c.ProfilePolicies["system"]
	require.NotNil(t, pp)
	assert.Equal(t, 14*24*time.Hour, pp.KeepSince.Std())
	require.NotNil(t, pp.KeepLatestN)
	assert.Equal(t, 5, *pp.KeepLatestN)
}

func TestConfigLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		data    string
		wantErr bool
	}{
		"minimal": {
			data: `
apiVersion: rootgc.dev/v1beta1
kind: Configuration
`,
		},
		"boolean owned only": {
			data: `
apiVersion: rootgc.dev/v1beta1
kind: Configuration
ownedOnly: true
`,
		},
		"missing api version": {
			data: `
kind: Configuration
`,
			wantErr: true,
		},
		"wrong api version": {
			data: `
apiVersion: rootgc.dev/v2
kind: Configuration
`,
			wantErr: true,
		},
		"unknown field": {
			data: `
apiVersion: rootgc.dev/v1beta1
kind: Configuration
stor: /nix/store
`,
			wantErr: true,
		},
		"policy missing path regex": {
			data: `
apiVersion: rootgc.dev/v1beta1
kind: Configuration
temporaryRootPolicies:
  bad:
    period: 7d
`,
			wantErr: true,
		},
		"not yaml": {
			data:    `{{`,
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := config.NewConfigLoaderFromBytes([]byte(tc.data)).Validate()

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(c *config.Config)
		wantErr error
	}{
		"temporary policy without period": {
			mutate: func(c *config.Config) {
				c.TemporaryRootPolicies = map[string]*policy.TemporaryRoot{
					"bad": {PathRegex: ".*"},
				}
			},
			wantErr: assert.AnError,
		},
		"temporary policy with invalid regex": {
			mutate: func(c *config.Config) {
				c.TemporaryRootPolicies = map[string]*policy.TemporaryRoot{
					"bad": {PathRegex: "([", Period: durationPtr(time.Hour)},
				}
			},
			wantErr: assert.AnError,
		},
		"temporary policy with invalid match expression": {
			mutate: func(c *config.Config) {
				c.TemporaryRootPolicies = map[string]*policy.TemporaryRoot{
					"bad": {PathRegex: ".*", Match: "][", Period: durationPtr(time.Hour)},
				}
			},
			wantErr: assert.AnError,
		},
		"profile policy without keeps": {
			mutate: func(c *config.Config) {
				c.ProfilePolicies = map[string]*policy.Profile{
					"bad": {ProfilePaths: []string{"/nix/var/nix/profiles/system"}},
				}
			},
			wantErr: assert.AnError,
		},
		"duplicate profile paths across policies": {
			mutate: func(c *config.Config) {
				c.ProfilePolicies = map[string]*policy.Profile{
					"a": {
						ProfilePaths: []string{"/nix/var/nix/profiles/system"},
						KeepLatestN:  intPtr(5),
					},
					"b": {
						ProfilePaths: []string{"/nix/var/nix/profiles/system"},
						KeepLatestN:  intPtr(3),
					},
				}
			},
			wantErr: config.ErrDuplicateProfilePath,
		},
		"invalid owned only": {
			mutate: func(c *config.Config) {
				c.OwnedOnly = "sometimes"
			},
			wantErr: assert.AnError,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := config.NewConfig()
			tc.mutate(c)

			err := c.Validate()
			require.Error(t, err)

			if tc.wantErr != assert.AnError {
				require.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestOwnedOnly_Instantiate(t *testing.T) {
	t.Parallel()

	assert.True(t, config.OwnedOnlyTrue.Instantiate(0))
	assert.False(t, config.OwnedOnlyFalse.Instantiate(1000))
	assert.False(t, config.OwnedOnlyAuto.Instantiate(0))
	assert.True(t, config.OwnedOnlyAuto.Instantiate(1000))
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	// The embedded default configuration has to round-trip through both the
	// schema validation and the Go validation.
	c := config.NewConfig()
	c.TemporaryRootPolicies = map[string]*policy.TemporaryRoot{
		"default": {
			Priority:  intPtr(100),
			PathRegex: ".*",
			Period:    durationPtr(7 * 24 * time.Hour),
		},
	}

	data, err := c.MarshalYAML()
	require.NoError(t, err)

	cl := config.NewConfigLoaderFromBytes(data)
	require.NoError(t, cl.Validate())

	_, err = cl.Load()
	require.NoError(t, err)
}
