// Package ints is a codec for unsigned decimal integers as they appear in
// nostr JSON: no sign, no exponent, no leading zeroes.
package ints

import (
	"strconv"

	"troczen.dev/pkg/utils/errorf"
)

// T wraps an unsigned integer for wire encoding.
type T struct {
	N uint64
}

// New creates an ints.T from any integer type.
func New[V uint | int | uint16 | uint32 | uint64 | int16 | int32 | int64](n V) *T {
	return &T{N: uint64(n)}
}

// Uint64 returns the value as uint64.
func (n *T) Uint64() uint64 { return n.N }

// Uint16 returns the value truncated to uint16.
func (n *T) Uint16() uint16 { return uint16(n.N) }

// Int returns the value as an int.
func (n *T) Int() int { return int(n.N) }

// Marshal appends the decimal encoding of the value to dst.
func (n *T) Marshal(dst []byte) (b []byte) {
	return strconv.AppendUint(dst, n.N, 10)
}

// Unmarshal parses a run of decimal digits at the start of b, leaving the
// remainder in r.
func (n *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	var v uint64
	var digits int
	for len(r) > 0 && r[0] >= '0' && r[0] <= '9' {
		d := uint64(r[0] - '0')
		if v > (1<<64-1-d)/10 {
			err = errorf.E("integer overflow in '%s'", b)
			return
		}
		v = v*10 + d
		digits++
		r = r[1:]
	}
	if digits == 0 {
		err = errorf.E("no digits found in '%s'", b)
		return
	}
	n.N = v
	return
}
