// Package filters implements a set of filters as found in a REQ envelope,
// matching an event when any one member filter matches it.
package filters

import (
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// T is a set of filter.F that all apply to one subscription.
type T struct {
	F []*filter.F
}

// New creates a filters.T from a list of filter.F.
func New(ff ...*filter.F) (f *T) { return &T{F: ff} }

// Len returns the number of filters in the set.
func (f *T) Len() (l int) {
	if f == nil {
		return
	}
	return len(f.F)
}

// Match returns true if any filter in the set matches the event.
func (f *T) Match(ev *event.E) bool {
	if f == nil {
		return false
	}
	for _, ff := range f.F {
		if ff.Matches(ev) {
			return true
		}
	}
	return false
}

// MatchIgnoringTimestampConstraints returns true if any filter in the set
// matches the event when since/until are disregarded, as applies to events
// delivered after EOSE.
func (f *T) MatchIgnoringTimestampConstraints(ev *event.E) bool {
	if f == nil {
		return false
	}
	for _, ff := range f.F {
		if ff.MatchesIgnoringTimestamp(ev) {
			return true
		}
	}
	return false
}

// Equal checks that two filter sets are the same.
func (f *T) Equal(f1 *T) bool {
	if f.Len() != f1.Len() {
		return false
	}
	for i := range f.F {
		if !f.F[i].Equal(f1.F[i]) {
			return false
		}
	}
	return true
}

// Marshal appends the comma separated JSON forms of the set to dst, as they
// appear between the subscription id and closing bracket of a REQ envelope.
func (f *T) Marshal(dst []byte) (b []byte) {
	b = dst
	for i := range f.F {
		if i > 0 {
			b = append(b, ',')
		}
		b = f.F[i].Marshal(b)
	}
	return
}

// Serialize returns the set in minified JSON form.
func (f *T) Serialize() (b []byte) { return f.Marshal(nil) }

// Unmarshal reads a comma separated series of filter objects until the
// enclosing array's closing bracket is found, leaving the remainder,
// including that bracket, in r.
func (f *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	for len(r) > 0 {
		switch r[0] {
		case '{':
			ff := filter.New()
			if r, err = ff.Unmarshal(r); chk.E(err) {
				return
			}
			f.F = append(f.F, ff)
		case ',', ' ', '\t', '\n', '\r':
			r = r[1:]
		case ']':
			return
		default:
			err = errorf.E("unexpected character '%c' in filters list: '%s'",
				r[0], b)
			return
		}
	}
	return
}
