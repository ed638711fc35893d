// Package touch refreshes the modification time of root symlinks, resetting
// the retention clock of age-based policies.
package touch

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"

	"github.com/rootgc/rootgc/pkg/gcroot"
)

// Options are the per-invocation knobs of a touch pass.
type Options struct {
	// Path is the file or directory tree to process.
	Path string

	// MaxDepth bounds the directory recursion. Zero means unbounded.
	MaxDepth int

	// NoRecurse processes only the immediate entries of Path.
	NoRecurse bool

	// DryRun reports what would be touched without modifying anything.
	DryRun bool

	// Silent suppresses the per-path report lines.
	Silent bool
}

// Toucher walks a tree and refreshes the mtime of every symlink that
// resolves into the store. Unreadable entries are skipped, not fatal.
type Toucher struct {
	stderr io.Writer
	store  string
	opts   Options
}

var touchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

func New(store string, opts Options, stderr io.Writer) *Toucher {
	if stderr == nil {
		stderr = os.Stderr
	}

	if opts.NoRecurse {
		opts.MaxDepth = 1
	}

	return &Toucher{
		store:  store,
		opts:   opts,
		stderr: stderr,
	}
}

// Touch runs the pass. Only a failure to read the starting path is fatal.
func (t *Toucher) Touch() error {
	root := filepath.Clean(t.opts.Path)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", path, err)
			}

			slog.Warn("skip entry, cannot read",
				slog.String("path", path),
				slog.Any("error", err),
			)

			return nil
		}

		if d.IsDir() && t.exceedsDepth(root, path) {
			return filepath.SkipDir
		}

		if d.Type()&fs.ModeSymlink != 0 {
			t.touchPath(path)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (t *Toucher) exceedsDepth(root, path string) bool {
	if t.opts.MaxDepth <= 0 || path == root {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return strings.Count(rel, string(filepath.Separator))+1 >= t.opts.MaxDepth
}

func (t *Toucher) touchPath(path string) {
	_, ok := gcroot.ValidateStorePath(t.store, path)
	if !ok {
		slog.Debug("ignore path, not a link into store",
			slog.String("path", path),
		)

		return
	}

	if t.opts.Silent {
		slog.Debug("touch", slog.String("path", path))
	} else {
		fmt.Fprintf(t.stderr, "%s %q\n", touchStyle.Render("Touch"), path)
	}

	if t.opts.DryRun {
		return
	}

	// Keep atime, set mtime to now, and operate on the symlink itself.
	times := []unix.Timespec{
		{Nsec: unix.UTIME_OMIT},
		{Nsec: unix.UTIME_NOW},
	}

	err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		slog.Error("touch failed",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}
