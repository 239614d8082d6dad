// Package closeenvelope implements the CLOSE envelope, the client message
// that ends a subscription.
package closeenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/subscription"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "CLOSE"

// T is a CLOSE envelope, ending the subscription with the id it carries.
type T struct {
	ID *subscription.Id
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty CLOSE envelope.
func New() *T { return &T{ID: &subscription.Id{}} }

// NewFrom creates a CLOSE envelope for a provided subscription id.
func NewFrom(id *subscription.Id) *T { return &T{ID: id} }

// Label returns the label of a CLOSE envelope.
func (en *T) Label() string { return L }

// Write the CLOSE envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a CLOSE envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.ID.Marshal(o)
			return
		},
	)
	return
}

// Unmarshal a CLOSE envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.ID = &subscription.Id{}
	if r, err = en.ID.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// Parse reads a CLOSE envelope from the remainder after the envelope label
// and unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
