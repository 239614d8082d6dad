// Package eoseenvelope implements the EOSE envelope, the marker a relay
// sends when all stored events matching a subscription have been delivered
// and subsequent events will be realtime.
package eoseenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/subscription"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "EOSE"

// T is an EOSE envelope, the end of stored events marker of a subscription.
type T struct {
	Subscription *subscription.Id
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty EOSE envelope.
func New() *T { return &T{Subscription: &subscription.Id{}} }

// NewFrom creates an EOSE envelope for a provided subscription id.
func NewFrom(id *subscription.Id) *T { return &T{Subscription: id} }

// Label returns the label of an EOSE envelope.
func (en *T) Label() string { return L }

// Write the EOSE envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal an EOSE envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.Subscription.Marshal(o)
			return
		},
	)
	return
}

// Unmarshal an EOSE envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// Parse reads an EOSE envelope from the remainder after the envelope label
// and unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
