// Package hex wraps the SIMD accelerated templexxx/xhex codec with the
// convenience forms used throughout the codebase.
package hex

import (
	"encoding/hex"

	"github.com/templexxx/xhex"
)

// Enc encodes a byte slice as a lowercase hex string.
func Enc(b []byte) (s string) {
	dst := make([]byte, len(b)*2)
	xhex.Encode(dst, b)
	return string(dst)
}

// EncAppend appends the hex encoding of src to dst.
func EncAppend(dst, src []byte) []byte {
	l := len(dst)
	dst = append(dst, make([]byte, len(src)*2)...)
	xhex.Encode(dst[l:], src)
	return dst
}

// Dec decodes a hex string into a new byte slice.
func Dec(s string) (b []byte, err error) {
	if len(s)%2 != 0 {
		return nil, hex.ErrLength
	}
	b = make([]byte, len(s)/2)
	if err = xhex.Decode(b, []byte(s)); err != nil {
		return nil, err
	}
	return
}

// DecAppend decodes hex encoded src and appends the result to dst.
func DecAppend(dst, src []byte) (b []byte, err error) {
	if len(src)%2 != 0 {
		return nil, hex.ErrLength
	}
	l := len(dst)
	b = append(dst, make([]byte, len(src)/2)...)
	if err = xhex.Decode(b[l:], src); err != nil {
		return nil, err
	}
	return
}
