// Package eventenvelope implements the two forms of the EVENT envelope, the
// submission sent by a client to publish an event and the result sent by a
// relay to deliver an event matching a subscription.
package eventenvelope

import (
	"io"

	envs "troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/subscription"
	"troczen.dev/pkg/interfaces/codec"
	"troczen.dev/pkg/utils/chk"
)

// L is the label associated with this type of codec.Envelope.
const L = "EVENT"

// Submission is a client message requesting that a relay store and
// distribute an event.
type Submission struct {
	Event *event.E
}

var _ codec.Envelope = (*Submission)(nil)

// NewSubmission creates a new empty Submission.
func NewSubmission() *Submission { return &Submission{} }

// NewSubmissionWith creates a Submission with a provided event.E.
func NewSubmissionWith(ev *event.E) *Submission { return &Submission{Event: ev} }

// Label returns the label of an EVENT Submission envelope.
func (en *Submission) Label() string { return L }

// Write the Submission to a provided io.Writer.
func (en *Submission) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a Submission to minified JSON, appending to a provided destination
// slice.
func (en *Submission) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(b, L, en.Event.Marshal)
	return
}

// Unmarshal a Submission from the remainder after the envelope label,
// returning what follows the closing bracket.
func (en *Submission) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.Event = event.New()
	if r, err = en.Event.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// ParseSubmission reads an EVENT Submission from the remainder after the
// envelope label and unpacks it to the runtime format.
func ParseSubmission(b []byte) (t *Submission, rem []byte, err error) {
	t = NewSubmission()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}

// Result is a relay message delivering an event that matched the filters of
// the subscription named in it.
type Result struct {
	Subscription *subscription.Id
	Event        *event.E
}

var _ codec.Envelope = (*Result)(nil)

// NewResult creates a new empty Result.
func NewResult() *Result { return &Result{} }

// NewResultWith creates a Result with a provided subscription id and event.
func NewResultWith[V string | []byte](s V, ev *event.E) (
	res *Result, err error,
) {
	var id *subscription.Id
	if id, err = subscription.NewId(s); chk.E(err) {
		return
	}
	res = &Result{Subscription: id, Event: ev}
	return
}

// Label returns the label of an EVENT Result envelope.
func (en *Result) Label() string { return L }

// Write the Result to a provided io.Writer.
func (en *Result) Write(w io.Writer) (err error) {
	var b []byte
	b = en.Marshal(b)
	_, err = w.Write(b)
	return
}

// Marshal a Result to minified JSON, appending to a provided destination
// slice.
func (en *Result) Marshal(dst []byte) (b []byte) {
	b = dst
	b = envs.Marshal(
		b, L,
		func(bst []byte) (o []byte) {
			o = bst
			o = en.Subscription.Marshal(o)
			o = append(o, ',')
			o = en.Event.Marshal(o)
			return
		},
	)
	return
}

// Unmarshal a Result from the remainder after the envelope label, returning
// what follows the closing bracket.
func (en *Result) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.Comma(r); chk.E(err) {
		return
	}
	en.Event = event.New()
	if r, err = en.Event.Unmarshal(r); chk.E(err) {
		return
	}
	if r, err = envs.SkipToTheEnd(r); chk.E(err) {
		return
	}
	return
}

// ParseResult reads an EVENT Result from the remainder after the envelope
// label and unpacks it to the runtime format.
func ParseResult(b []byte) (t *Result, rem []byte, err error) {
	t = NewResult()
	if rem, err = t.Unmarshal(b); chk.E(err) {
		return
	}
	return
}
