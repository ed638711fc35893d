package gcroot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rootgc/rootgc/pkg/gcroot"
)

func TestAmbient_ExpandHome(t *testing.T) {
	t.Parallel()

	amb := gcroot.Ambient{Home: "/home/alice"}

	tcs := map[string]struct {
		path string
		want string
	}{
		"tilde prefix": {
			path: "~/.local/state/nix/profiles/profile",
			want: "/home/alice/.local/state/nix/profiles/profile",
		},
		"bare tilde": {
			path: "~",
			want: "/home/alice",
		},
		"absolute path unchanged": {
			path: "/nix/var/nix/profiles/system",
			want: "/nix/var/nix/profiles/system",
		},
		"tilde in the middle unchanged": {
			path: "/srv/~alice/profile",
			want: "/srv/~alice/profile",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, amb.ExpandHome(tc.path))
		})
	}
}
