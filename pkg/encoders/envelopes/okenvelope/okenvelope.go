// Package okenvelope implements the OK envelope, the relay's acceptance or
// rejection of an event submission, carrying the event id, a boolean and a
// reason that may have a machine readable prefix.
package okenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/eventid"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// L is the label associated with this type of codec.Envelope.
const L = "OK"

// T is an OK envelope, the acceptance status of an event submission.
type T struct {
	EventID *eventid.T
	OK      bool
	Reason  []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates a new empty OK envelope.
func New() *T { return &T{EventID: eventid.New()} }

// NewFrom creates an OK envelope from an event id, status and optional
// reason.
func NewFrom(eid *eventid.T, ok bool, msg ...[]byte) *T {
	var m []byte
	if len(msg) > 0 {
		m = msg[0]
	}
	return &T{EventID: eid, OK: ok, Reason: m}
}

// Label returns the label of an OK envelope.
func (en *T) Label() string { return L }

// ReasonString returns the reason of the OK envelope as a string.
func (en *T) ReasonString() string { return string(en.Reason) }

// Write the OK envelope to a provided io.Writer.
func (en *T) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal an OK envelope to minified JSON, appending to a provided
// destination slice.
func (en *T) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.EventID.Marshal(o)
			o = append(o, ',')
			if en.OK {
				o = append(o, "true"...)
			} else {
				o = append(o, "false"...)
			}
			o = append(o, ',', '"')
			o = text.NostrEscape(o, en.Reason)
			o = append(o, '"')
			return
		},
	)
	return
}

// Unmarshal an OK envelope from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.EventID = eventid.New()
	if r, err = en.EventID.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.Comma(r); chk.E(err) {
		return
	}
	switch {
	case len(r) >= 4 && string(r[:4]) == "true":
		en.OK = true
		r = r[4:]
	case len(r) >= 5 && string(r[:5]) == "false":
		r = r[5:]
	default:
		err = errorf.E("expected boolean in OK envelope: '%s'", b)
		return
	}
	// the reason is mandatory in NIP-01 but some relays omit it when
	// accepting
	rr := r
	for len(rr) > 0 &&
		(rr[0] == ' ' || rr[0] == '\t' || rr[0] == '\n' || rr[0] == '\r') {
		rr = rr[1:]
	}
	if len(rr) > 0 && rr[0] == ']' {
		r = rr[1:]
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

// Parse reads an OK envelope from the remainder after the envelope label and
// unpacks it to the runtime format.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
