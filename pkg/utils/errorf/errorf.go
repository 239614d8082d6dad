// Package errorf re-exports the logging error constructors of the main
// logger: errorf.E and friends format an error, log it with the location
// where it was created, and return it.
package errorf

import (
	"troczen.dev/pkg/utils/lol"
)

var (
	// F creates an error and logs it at Fatal level.
	F = lol.Main.Errorf.F
	// E creates an error and logs it at Error level.
	E = lol.Main.Errorf.E
	// W creates an error and logs it at Warn level.
	W = lol.Main.Errorf.W
	// I creates an error and logs it at Info level.
	I = lol.Main.Errorf.I
	// D creates an error and logs it at Debug level.
	D = lol.Main.Errorf.D
	// T creates an error and logs it at Trace level.
	T = lol.Main.Errorf.T
)
