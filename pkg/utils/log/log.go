// Package log re-exports the level printers of the main logger so call sites
// read as log.I.F, log.D.Ln and so on.
package log

import (
	"troczen.dev/pkg/utils/lol"
)

var (
	// F prints at Fatal level.
	F = lol.Main.Log.F
	// E prints at Error level.
	E = lol.Main.Log.E
	// W prints at Warn level.
	W = lol.Main.Log.W
	// I prints at Info level.
	I = lol.Main.Log.I
	// D prints at Debug level.
	D = lol.Main.Log.D
	// T prints at Trace level.
	T = lol.Main.Log.T
)
