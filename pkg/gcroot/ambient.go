package gcroot

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// BootedSystemPath links to the system generation the machine booted from.
	BootedSystemPath = "/run/booted-system"

	// CurrentSystemPath links to the currently activated system generation.
	CurrentSystemPath = "/run/current-system"
)

// Ambient captures the process environment a run evaluates policies against.
// Tests inject their own values instead of sampling the host.
type Ambient struct {
	// LookupHome resolves a user's home directory by uid. A false return
	// means the user is unknown; callers must treat that as inconclusive.
	LookupHome func(uid uint32) (string, bool)

	// BootedSystem is the resolved store path of [BootedSystemPath], or
	// empty when unavailable.
	BootedSystem string

	// CurrentSystem is the resolved store path of [CurrentSystemPath], or
	// empty when unavailable.
	CurrentSystem string

	// Home is the invoking user's home directory, used to expand `~` in
	// profile paths.
	Home string

	// Now anchors all age computations for the run.
	Now time.Time

	// UID is the invoking user's id.
	UID uint32
}

// CaptureAmbient samples the host environment. Missing pieces, such as an
// unreadable booted-system link, are left zero rather than failing the run.
func CaptureAmbient() Ambient {
	amb := Ambient{
		Now:        time.Now(),
		UID:        uint32(os.Getuid()), //nolint:gosec // G115: uids fit in uint32.
		LookupHome: lookupHome,
	}

	if path, err := filepath.EvalSymlinks(BootedSystemPath); err == nil {
		amb.BootedSystem = path
	}
	if path, err := filepath.EvalSymlinks(CurrentSystemPath); err == nil {
		amb.CurrentSystem = path
	}
	if home, ok := lookupHome(amb.UID); ok {
		amb.Home = home
	}

	return amb
}

// ExpandHome substitutes a leading `~` in path with the ambient home
// directory. Paths without the prefix are returned unchanged.
func (a Ambient) ExpandHome(path string) string {
	if path == "~" {
		return a.Home
	}
	if strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(a.Home, path[2:])
	}

	return path
}

func lookupHome(uid uint32) (string, bool) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil || u.HomeDir == "" {
		return "", false
	}

	return u.HomeDir, true
}
