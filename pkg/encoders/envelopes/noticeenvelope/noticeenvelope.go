// Package noticeenvelope implements the NOTICE envelope, a human readable
// message sent by a relay to a client.
package noticeenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "NOTICE"

// T is a NOTICE envelope, bearing a message for the human operating the
// client.
type T struct {
	Message []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty NOTICE envelope.
func New() *T { return &T{} }

// NewFrom creates a NOTICE envelope with a provided message.
func NewFrom[V string | []byte](msg V) *T { return &T{Message: []byte(msg)} }

// Label returns the label of a NOTICE envelope.
func (en *T) Label() string { return L }

// Write the NOTICE envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a NOTICE envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = append(o, '"')
			o = text.NostrEscape(o, en.Message)
			o = append(o, '"')
			return
		},
	)
	return
}

// Unmarshal a NOTICE envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	if en.Message, r, err = text.UnmarshalQuoted(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// Parse reads a NOTICE envelope from the remainder after the envelope label
// and unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
