package gcroot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Root is a classified GC root. Path is the target the root symlink points
// at, LinkPath is the root symlink itself, and StorePath is the fully
// resolved path inside the store.
type Root struct {
	Path      string
	LinkPath  string
	StorePath string
	MTime     time.Time
	Age       time.Duration
	UID       uint32
}

// Classifier turns root symlinks into [Root] values, discarding entries
// whose target is gone, unreadable, foreign-owned (in owned-only mode), or
// outside the store.
type Classifier struct {
	Store     string
	Ambient   Ambient
	OwnedOnly bool
}

// Classify inspects the root symlink at linkPath. A nil root with a nil
// error means the entry was skipped; errors are reserved for failures that
// must abort the run, such as an unreadable link.
func (c *Classifier) Classify(linkPath string) (*Root, error) {
	target, err := os.Readlink(linkPath)
	if err != nil {
		return nil, fmt.Errorf("read symbolic link %s: %w", linkPath, err)
	}

	if !filepath.IsAbs(target) {
		target = filepath.Clean(filepath.Join(filepath.Dir(linkPath), target))
	}

	info, err := os.Lstat(target)

	switch {
	case err == nil:

	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("skip root, target not found",
			slog.String("link", linkPath),
			slog.String("target", target),
		)

		return nil, nil

	case errors.Is(err, fs.ErrPermission) && c.OwnedOnly:
		slog.Debug("skip root in owned-only mode, target not readable",
			slog.String("target", target),
		)

		return nil, nil

	default:
		slog.Warn("skip root, cannot read target metadata",
			slog.String("target", target),
			slog.Any("error", err),
		)

		return nil, nil
	}

	uid := ownerUID(info)
	if c.OwnedOnly && uid != c.Ambient.UID {
		slog.Debug("skip root in owned-only mode, not owned by the current user",
			slog.String("target", target),
		)

		return nil, nil
	}

	storePath, ok := ValidateStorePath(c.Store, target)
	if !ok {
		slog.Warn("skip root, target does not resolve into the store",
			slog.String("target", target),
		)

		return nil, nil
	}

	mtime := info.ModTime()

	age := c.Ambient.Now.Sub(mtime)
	if age < 0 {
		age = 0
	}

	return &Root{
		Path:      target,
		LinkPath:  linkPath,
		StorePath: storePath,
		MTime:     mtime,
		Age:       age,
		UID:       uid,
	}, nil
}

// ValidateStorePath resolves target through all symlinks and reports whether
// the result lives under store. A target that cannot be resolved is invalid.
func ValidateStorePath(store, target string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		slog.Warn("cannot canonicalize target for validation",
			slog.String("target", target),
			slog.Any("error", err),
		)

		return "", false
	}

	store = filepath.Clean(store)
	if resolved == store || strings.HasPrefix(resolved, store+string(filepath.Separator)) {
		return resolved, true
	}

	return "", false
}

func ownerUID(info fs.FileInfo) uint32 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Uid
	}

	return 0
}
