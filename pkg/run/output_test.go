package run_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/execs"
	"github.com/rootgc/rootgc/pkg/run"
)

func newShCommand(script string) execs.Command {
	return execs.NewCommand("sh", "-c", script)
}

func TestOutput(t *testing.T) {
	t.Parallel()

	t.Run("joins paths with the delimiter without a trailing one", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out")

		o, err := run.NewOutput(path, "\x00", false)
		require.NoError(t, err)

		require.NoError(t, o.Write("/nix/store/a"))
		require.NoError(t, o.Write("/nix/store/b"))
		require.NoError(t, o.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/nix/store/a\x00/nix/store/b", string(data))
	})

	t.Run("empty path discards output", func(t *testing.T) {
		t.Parallel()

		o, err := run.NewOutput("", "\n", false)
		require.NoError(t, err)

		require.NoError(t, o.Write("/nix/store/a"))
		require.NoError(t, o.Close())
	})

	t.Run("unwritable path is an error", func(t *testing.T) {
		t.Parallel()

		_, err := run.NewOutput(filepath.Join(t.TempDir(), "missing", "out"), "\n", false)
		require.Error(t, err)
	})
}

func TestStatistics_Render(t *testing.T) {
	t.Parallel()

	var s run.Statistics

	s.Traversed.Add(4)
	s.Monitored.Add(3)
	s.Expired.Add(2)
	s.Removed.Add(2)
	s.Invalid.Add(1)

	out := s.Render(false)

	assert.Contains(t, out, "Statistics")
	assert.Contains(t, out, "traversed: 4")
	assert.Contains(t, out, "kept:      2")
	assert.NotContains(t, out, "dry-run")

	assert.Contains(t, s.Render(true), "dry-run")
}
