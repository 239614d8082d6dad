// Package units defines common byte size multiples.
package units

const (
	Kb = 1000
	Mb = Kb * Kb
	Gb = Mb * Kb
)
