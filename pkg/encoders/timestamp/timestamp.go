// Package timestamp is a codec for the unix timestamps found in nostr events
// and filters. All accessors tolerate a nil receiver so optional filter fields
// can be used without presence checks.
package timestamp

import (
	"time"

	"troczen.dev/pkg/encoders/ints"
	"troczen.dev/pkg/utils/chk"
)

// T is a unix timestamp in seconds.
type T struct {
	V int64
}

// New creates a timestamp from any integer type.
func New[V int | int32 | int64 | uint16 | uint32 | uint64](t V) *T {
	return &T{V: int64(t)}
}

// Now returns the current time as a timestamp.
func Now() *T { return &T{V: time.Now().Unix()} }

// FromUnix creates a timestamp from a unix seconds value.
func FromUnix(t int64) *T { return &T{V: t} }

// FromTime creates a timestamp from a time.Time.
func FromTime(t time.Time) *T { return &T{V: t.Unix()} }

// I64 returns the timestamp as int64, zero when nil.
func (t *T) I64() (v int64) {
	if t == nil {
		return
	}
	return t.V
}

// U64 returns the timestamp as uint64, zero when nil.
func (t *T) U64() (v uint64) { return uint64(t.I64()) }

// Int returns the timestamp as an int, zero when nil.
func (t *T) Int() (v int) { return int(t.I64()) }

// Time returns the timestamp as a time.Time.
func (t *T) Time() time.Time { return time.Unix(t.I64(), 0) }

// Marshal appends the decimal encoding of the timestamp to dst.
func (t *T) Marshal(dst []byte) (b []byte) {
	return ints.New(t.U64()).Marshal(dst)
}

// Unmarshal parses a decimal unix timestamp at the start of b, leaving the
// remainder in r.
func (t *T) Unmarshal(b []byte) (r []byte, err error) {
	n := ints.New(0)
	if r, err = n.Unmarshal(b); chk.E(err) {
		return
	}
	t.V = int64(n.N)
	return
}
