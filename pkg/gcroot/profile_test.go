package gcroot_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/gcroot"
)

// profileFixture builds a profiles directory with numbered generation links
// and the matching classified roots, keyed the way the engine keys them.
type profileFixture struct {
	*fixture

	profilesDir string
	roots       map[string]*gcroot.Root
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()

	f := newFixture(t)
	pf := &profileFixture{
		fixture:     f,
		profilesDir: filepath.Join(filepath.Dir(f.store), "profiles"),
		roots:       map[string]*gcroot.Root{},
	}

	require.NoError(t, os.Mkdir(pf.profilesDir, 0o755))

	return pf
}

// addGeneration creates one generation link and registers it as a classified
// root.
func (pf *profileFixture) addGeneration(t *testing.T, name string, age time.Duration) {
	t.Helper()

	target := pf.addStorePath(t, "gen-"+name, age)
	link := filepath.Join(pf.profilesDir, name)
	require.NoError(t, os.Symlink(target, link))

	pf.roots[link] = &gcroot.Root{
		Path:      link,
		StorePath: target,
		Age:       age,
	}
}

func (pf *profileFixture) addProfile(t *testing.T, name, currentGeneration string) string {
	t.Helper()

	path := filepath.Join(pf.profilesDir, name)
	require.NoError(t, os.Symlink(currentGeneration, path))

	return path
}

func TestReadProfile(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour

	t.Run("collects matching generations sorted by number descending", func(t *testing.T) {
		t.Parallel()

		pf := newProfileFixture(t)
		pf.addGeneration(t, "system-1-link", 30*day)
		pf.addGeneration(t, "system-3-link", 10*day)
		pf.addGeneration(t, "system-12-link", 1*day)
		// A sibling profile's generations never leak in.
		pf.addGeneration(t, "other-2-link", 5*day)

		path := pf.addProfile(t, "system", "system-12-link")

		profile, err := gcroot.ReadProfile(path, pf.roots, false, pf.ambient())
		require.NoError(t, err)
		require.NotNil(t, profile)

		assert.Equal(t, path, profile.Path)
		assert.Equal(t, "system-12-link", profile.CurrentGeneration)

		numbers := make([]int, 0, len(profile.Generations))
		for _, g := range profile.Generations {
			numbers = append(numbers, g.Number)
		}

		assert.Equal(t, []int{12, 3, 1}, numbers)
	})

	t.Run("generations without a classified root are excluded", func(t *testing.T) {
		t.Parallel()

		pf := newProfileFixture(t)
		pf.addGeneration(t, "system-2-link", 10*day)

		// Present on disk but never classified, e.g. a dangling target.
		unclassified := filepath.Join(pf.profilesDir, "system-1-link")
		require.NoError(t, os.Symlink(filepath.Join(pf.store, "gone"), unclassified))

		path := pf.addProfile(t, "system", "system-2-link")

		profile, err := gcroot.ReadProfile(path, pf.roots, false, pf.ambient())
		require.NoError(t, err)
		require.NotNil(t, profile)
		require.Len(t, profile.Generations, 1)
		assert.Equal(t, 2, profile.Generations[0].Number)
	})

	t.Run("missing profile is skipped", func(t *testing.T) {
		t.Parallel()

		pf := newProfileFixture(t)

		profile, err := gcroot.ReadProfile(
			filepath.Join(pf.profilesDir, "absent"), pf.roots, false, pf.ambient())
		require.NoError(t, err)
		assert.Nil(t, profile)
	})

	t.Run("owned-only skips foreign profiles", func(t *testing.T) {
		t.Parallel()

		pf := newProfileFixture(t)
		pf.addGeneration(t, "system-1-link", 10*day)
		path := pf.addProfile(t, "system", "system-1-link")

		amb := pf.ambient()
		amb.UID++

		profile, err := gcroot.ReadProfile(path, pf.roots, true, amb)
		require.NoError(t, err)
		assert.Nil(t, profile)
	})

	t.Run("non-symlink profile is fatal", func(t *testing.T) {
		t.Parallel()

		pf := newProfileFixture(t)
		path := filepath.Join(pf.profilesDir, "regular")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := gcroot.ReadProfile(path, pf.roots, false, pf.ambient())
		require.Error(t, err)
	})
}
