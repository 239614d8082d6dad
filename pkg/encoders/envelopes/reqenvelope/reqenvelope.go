// Package reqenvelope implements the REQ envelope, the client message that
// opens a subscription with an id and a set of filters.
package reqenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/filters"
	"troczen.dev/pkg/encoders/subscription"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "REQ"

// T is a REQ envelope, which requests stored events matching a set of
// filters and keeps the subscription open for new matching events until it
// is closed.
type T struct {
	Subscription *subscription.Id
	Filters      *filters.T
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty REQ envelope.
func New() *T { return &T{Subscription: &subscription.Id{}, Filters: filters.New()} }

// NewFrom creates a REQ envelope with a provided subscription id and filter
// set.
func NewFrom(id *subscription.Id, ff *filters.T) *T {
	return &T{Subscription: id, Filters: ff}
}

// NewWithIdString creates a REQ envelope from a subscription id string and a
// filter set, as used when firing a subscription at a relay.
func NewWithIdString(id string, ff *filters.T) *T {
	return &T{Subscription: &subscription.Id{T: []byte(id)}, Filters: ff}
}

// Label returns the label of a REQ envelope.
func (en *T) Label() string { return L }

// Write the REQ envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a REQ envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.Subscription.Marshal(o)
			o = append(o, ',')
			o = en.Filters.Marshal(o)
			return
		},
	)
	return
}

// Unmarshal a REQ envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(r); chk.E(err) {
		return
	}
	en.Filters = filters.New()
	if r, err = en.Filters.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// Parse reads a REQ envelope from the remainder after the envelope label and
// unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
