// Package closedenvelope implements the CLOSED envelope, the relay message
// that ends a subscription from the relay side with a machine readable
// reason.
package closedenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/subscription"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "CLOSED"

// T is a CLOSED envelope, carrying the subscription id that was ended and a
// reason, which may carry a machine readable prefix.
type T struct {
	Subscription *subscription.Id
	Reason       []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty CLOSED envelope.
func New() *T { return &T{Subscription: &subscription.Id{}} }

// NewFrom creates a CLOSED envelope from a provided subscription id and
// reason.
func NewFrom[V string | []byte](id *subscription.Id, reason V) *T {
	return &T{Subscription: id, Reason: []byte(reason)}
}

// Label returns the label of a CLOSED envelope.
func (en *T) Label() string { return L }

// ReasonString returns the reason of the CLOSED envelope as a string.
func (en *T) ReasonString() string { return string(en.Reason) }

// Write the CLOSED envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a CLOSED envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.Subscription.Marshal(o)
			o = append(o, ',', '"')
			o = text.NostrEscape(o, en.Reason)
			o = append(o, '"')
			return
		},
	)
	return
}

// Unmarshal a CLOSED envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.Comma(r); chk.E(err) {
		return
	}
	if en.Reason, r, err = text.UnmarshalQuoted(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// Parse reads a CLOSED envelope from the remainder after the envelope label
// and unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
