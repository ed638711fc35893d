// Package execs runs external helper programs with piped standard streams.
package execs
