// Package run drives a pruning pass: it collects GC roots, evaluates the
// configured policies against them, and removes what expired.
package run
