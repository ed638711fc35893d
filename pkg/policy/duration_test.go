package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/policy"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		"hours": {
			input: "36h",
			want:  36 * time.Hour,
		},
		"days": {
			input: "30d",
			want:  30 * 24 * time.Hour,
		},
		"weeks": {
			input: "2w",
			want:  2 * 7 * 24 * time.Hour,
		},
		"combined units": {
			input: "1w2d12h",
			want:  9*24*time.Hour + 12*time.Hour,
		},
		"fractional days": {
			input: "1.5d",
			want:  36 * time.Hour,
		},
		"plain go syntax": {
			input: "1h30m",
			want:  90 * time.Minute,
		},
		"empty": {
			input:   "",
			wantErr: true,
		},
		"unknown unit": {
			input:   "10x",
			wantErr: true,
		},
		"trailing garbage": {
			input:   "5d and then some",
			wantErr: true,
		},
		"bare number": {
			input:   "42",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := policy.ParseDuration(tc.input)

			if tc.wantErr {
				require.ErrorIs(t, err, policy.ErrInvalidDuration)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Std())
		})
	}
}

func TestDuration_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "30d", policy.Duration(30*24*time.Hour).String())
	assert.Equal(t, "36h0m0s", policy.Duration(36*time.Hour).String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	t.Parallel()

	var d policy.Duration

	require.NoError(t, d.UnmarshalText([]byte("7d")))
	assert.Equal(t, 7*24*time.Hour, d.Std())

	require.Error(t, d.UnmarshalText([]byte("not a duration")))
}
