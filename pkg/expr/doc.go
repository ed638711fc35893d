// Package expr compiles and evaluates CEL match expressions against GC-root
// paths.
package expr
