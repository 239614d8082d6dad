// Package eventid implements a strong type for the sha256 hash that
// identifies a nostr event.
package eventid

import (
	"github.com/minio/sha256-simd"

	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// T is an event id, the sha256 of the canonical form of an event.
type T struct {
	b []byte
}

// New creates an empty event id.
func New() (ei *T) { return &T{} }

// NewWith creates an event id wrapping the provided bytes without
// validation, for use where the value is already known good.
func NewWith[V string | []byte](s V) (ei *T) { return &T{b: []byte(s)} }

// NewFromBytes creates an event id from raw binary, checking the length.
func NewFromBytes(b []byte) (ei *T, err error) {
	if len(b) != sha256.Size {
		err = errorf.E("invalid event id length: %d require %d", len(b),
			sha256.Size)
		return
	}
	ei = &T{b: b}
	return
}

// NewFromIdString creates an event id from its 64 character hexadecimal
// string form.
func NewFromIdString(s string) (ei *T, err error) {
	var b []byte
	if b, err = hex.Dec(s); chk.E(err) {
		return
	}
	return NewFromBytes(b)
}

// Bytes returns the raw binary of the event id.
func (ei *T) Bytes() (b []byte) {
	if ei == nil {
		return
	}
	return ei.b
}

// String returns the hexadecimal string form of the event id.
func (ei *T) String() string {
	if ei == nil {
		return ""
	}
	return hex.Enc(ei.b)
}

// Len returns the length of the underlying bytes of the event id.
func (ei *T) Len() int {
	if ei == nil {
		return 0
	}
	return len(ei.b)
}

// Equal tests two event ids for equality.
func (ei *T) Equal(ei2 *T) bool {
	if ei == nil || ei2 == nil {
		return ei == ei2
	}
	if len(ei.b) != len(ei2.b) {
		return false
	}
	for i := range ei.b {
		if ei.b[i] != ei2.b[i] {
			return false
		}
	}
	return true
}

// Marshal appends the quoted hexadecimal form of the event id to dst.
func (ei *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = append(b, '"')
	b = hex.EncAppend(b, ei.b)
	b = append(b, '"')
	return
}

// Unmarshal parses a quoted 64 character hexadecimal event id at the start
// of b, leaving the remainder in r.
func (ei *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	var h []byte
	if h, r, err = text.UnmarshalHex(r); chk.E(err) {
		return
	}
	if len(h) != sha256.Size {
		err = errorf.E("invalid event id length: %d require %d", len(h),
			sha256.Size)
		return
	}
	ei.b = h
	return
}
