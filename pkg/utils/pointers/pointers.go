// Package pointers provides a generic presence check for pointer fields of
// decoded structures.
package pointers

// Present returns true if the pointer is not nil.
func Present[V any](i *V) bool { return i != nil }
