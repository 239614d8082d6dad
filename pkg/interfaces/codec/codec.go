// Package codec defines the interfaces for the wire codecs used throughout
// this codebase, which are based on appending to preallocated byte slices and
// progressive parsing that returns the remainder after the consumed segment.
package codec

import (
	"io"
)

// I is the basic codec interface. Marshal appends the encoded form to dst and
// returns the extended slice, Unmarshal consumes the encoded form from the
// front of b and returns the rest.
type I interface {
	Marshal(dst []byte) (b []byte)
	Unmarshal(b []byte) (r []byte, err error)
}

// Envelope is a codec for the array-framed messages passed between nostr
// clients and relays, distinguished by the label in their first element.
type Envelope interface {
	Label() string
	Write(w io.Writer) (err error)
	I
}
