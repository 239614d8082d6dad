// Package subscription implements the subscription id element found in REQ,
// EVENT, EOSE, CLOSE and CLOSED envelopes, an arbitrary non-empty string of
// at most 64 characters chosen by the client.
package subscription

import (
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"

	"lukechampine.com/frand"
)

// MaxLength is the protocol limit on the length of a subscription id.
const MaxLength = 64

// Id is a subscription identifier.
type Id struct {
	T []byte
}

// NewId creates a subscription id from a provided string or byte slice,
// returning an error if it is empty or overlong.
func NewId[V string | []byte](s V) (id *Id, err error) {
	if len(s) == 0 {
		err = errorf.E("subscription id must not be empty")
		return
	}
	if len(s) > MaxLength {
		err = errorf.E(
			"subscription id too long: %d > %d", len(s), MaxLength,
		)
		return
	}
	id = &Id{T: []byte(s)}
	return
}

// NewStd creates a new subscription id from strong random data, encoded only
// with characters that need no escaping.
func NewStd() (id *Id) {
	const idLen = 16
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, idLen)
	for i := range b {
		b[i] = alphabet[frand.Intn(len(alphabet))]
	}
	return &Id{T: b}
}

// IsValid reports whether the id is within the protocol limits.
func (si *Id) IsValid() bool {
	return si != nil && len(si.T) > 0 && len(si.T) <= MaxLength
}

// String returns the id as a string.
func (si *Id) String() string {
	if si == nil {
		return ""
	}
	return string(si.T)
}

// Marshal appends the quoted, escaped form of the id to dst.
func (si *Id) Marshal(dst []byte) (b []byte) {
	b = dst
	b = append(b, '"')
	b = text.NostrEscape(b, si.T)
	b = append(b, '"')
	return
}

// Unmarshal parses a quoted subscription id at the start of b, leaving the
// remainder in r.
func (si *Id) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	if si.T, r, err = text.UnmarshalQuoted(r); chk.E(err) {
		return
	}
	return
}
