// Package gcroot discovers and classifies garbage collector roots of a
// content-addressed store, and reads profiles with their numbered
// generations.
package gcroot
