package gcroot

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

// generationPattern matches generation links like `system-123-link` and
// captures the profile name and the generation number.
var generationPattern = regexp.MustCompile(`^(.*)-([0-9]+)-link$`)

// Generation is one numbered generation of a profile, backed by the GC root
// whose target is the generation link.
type Generation struct {
	Root   *Root
	Number int
}

// Profile is a profile symlink together with its discovered generations,
// sorted by generation number descending.
type Profile struct {
	Path              string
	CurrentGeneration string
	Generations       []Generation
}

// ReadProfile reads the profile symlink at path and collects its sibling
// generation links. Only generations that are already classified GC roots
// participate; roots is keyed by [Root.Path]. A nil profile with a nil error
// means the profile was skipped.
func ReadProfile(path string, roots map[string]*Root, ownedOnly bool, amb Ambient) (*Profile, error) {
	info, err := os.Lstat(path)

	switch {
	case err == nil:

	case errors.Is(err, fs.ErrNotExist):
		slog.Info("ignore profile, path not found",
			slog.String("path", path),
		)

		return nil, nil

	case errors.Is(err, fs.ErrPermission) && ownedOnly:
		slog.Info("ignore profile in owned-only mode, path not readable",
			slog.String("path", path),
		)

		return nil, nil

	default:
		return nil, fmt.Errorf("read metadata of profile %s: %w", path, err)
	}

	if ownedOnly && ownerUID(info) != amb.UID {
		slog.Info("ignore profile in owned-only mode, not owned by the current user",
			slog.String("path", path),
		)

		return nil, nil
	}

	name := filepath.Base(path)

	currentGeneration, err := os.Readlink(path)
	if err != nil {
		return nil, fmt.Errorf("read symbolic link %s: %w", path, err)
	}

	dir := filepath.Dir(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var generations []Generation

	for _, entry := range entries {
		root, ok := roots[filepath.Join(dir, entry.Name())]
		if !ok {
			continue
		}

		m := generationPattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != name {
			continue
		}

		number, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("parse generation number in %s: %w", entry.Name(), err)
		}

		generations = append(generations, Generation{Root: root, Number: number})
	}

	slices.SortFunc(generations, func(a, b Generation) int {
		return cmp.Compare(b.Number, a.Number)
	})

	return &Profile{
		Path:              path,
		CurrentGeneration: currentGeneration,
		Generations:       generations,
	}, nil
}
