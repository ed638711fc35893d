package run

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Statistics counts the outcomes of one run. The counters are atomics so
// they stay correct if the policy loops are ever dispatched concurrently.
type Statistics struct {
	Traversed atomic.Uint64
	Monitored atomic.Uint64
	Expired   atomic.Uint64
	Removed   atomic.Uint64
	Invalid   atomic.Uint64
}

var (
	statsTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	statsNumStyle   = lipgloss.NewStyle().Bold(true)
)

// Render formats the counters as the human-readable statistics block.
func (s *Statistics) Render(dryRun bool) string {
	traversed := s.Traversed.Load()
	monitored := s.Monitored.Load()
	expired := s.Expired.Load()
	removed := s.Removed.Load()
	invalid := s.Invalid.Load()
	kept := traversed - removed

	num := func(n uint64) string {
		return statsNumStyle.Render(fmt.Sprintf("%d", n))
	}

	removedLine := fmt.Sprintf("removed:   %s", num(removed))
	if dryRun && removed != 0 {
		removedLine += statsNumStyle.Render(" (dry-run)")
	}

	return strings.Join([]string{
		statsTitleStyle.Render("Statistics"),
		fmt.Sprintf("traversed: %s", num(traversed)),
		fmt.Sprintf("monitored: %s", num(monitored)),
		fmt.Sprintf("expired:   %s", num(expired)),
		removedLine,
		fmt.Sprintf("invalid:   %s", num(invalid)),
		fmt.Sprintf("kept:      %s", num(kept)),
	}, "\n")
}
