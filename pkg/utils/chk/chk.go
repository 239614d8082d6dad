// Package chk re-exports the error checkers of the main logger, enabling the
// `if chk.E(err) { ... }` guard used throughout the repository: the error is
// logged with its code location and the check reports whether it was non-nil.
package chk

import (
	"troczen.dev/pkg/utils/lol"
)

var (
	// F logs a non-nil error at Fatal level and reports whether it was non-nil.
	F = lol.Main.Check.F
	// E logs a non-nil error at Error level and reports whether it was non-nil.
	E = lol.Main.Check.E
	// W logs a non-nil error at Warn level and reports whether it was non-nil.
	W = lol.Main.Check.W
	// I logs a non-nil error at Info level and reports whether it was non-nil.
	I = lol.Main.Check.I
	// D logs a non-nil error at Debug level and reports whether it was non-nil.
	D = lol.Main.Check.D
	// T logs a non-nil error at Trace level and reports whether it was non-nil.
	T = lol.Main.Check.T
)
