// Package tags is a codec for the tag list of a nostr event, with the
// prefix-matching helpers the rest of the system uses to pull values out of
// events.
package tags

import (
	"bytes"

	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// T is the tag list of an event.
type T struct {
	t []*tag.T
}

// New creates a tags.T from a list of tag.T.
func New(t ...*tag.T) *T { return &T{t: t} }

// NewWithCap creates an empty tags.T with a given capacity.
func NewWithCap(c int) *T { return &T{t: make([]*tag.T, 0, c)} }

// Len returns the number of tags in the list.
func (t *T) Len() (l int) {
	if t == nil {
		return
	}
	return len(t.t)
}

// Less reports whether tag i sorts before tag j by their first elements.
func (t *T) Less(i, j int) bool {
	return bytes.Compare(t.t[i].Key(), t.t[j].Key()) < 0
}

// Swap exchanges two tags in the list.
func (t *T) Swap(i, j int) { t.t[i], t.t[j] = t.t[j], t.t[i] }

// AppendTags adds tags to the end of the list, creating it if necessary.
func (t *T) AppendTags(tgs ...*tag.T) (t1 *T) {
	if t == nil {
		return New(tgs...)
	}
	t.t = append(t.t, tgs...)
	return t
}

// GetTagElement returns the tag at index i.
func (t *T) GetTagElement(i int) (t1 *tag.T) {
	if t == nil || i >= len(t.t) {
		return
	}
	return t.t[i]
}

// ToSliceOfTags returns the underlying tag list.
func (t *T) ToSliceOfTags() (t1 []*tag.T) {
	if t == nil {
		return
	}
	return t.t
}

// ToStringsSlice returns the tags as a slice of slices of strings.
func (t *T) ToStringsSlice() (s [][]string) {
	if t == nil {
		return
	}
	s = make([][]string, 0, t.Len())
	for i := range t.t {
		s = append(s, t.t[i].ToStringSlice())
	}
	return
}

// GetFirst returns the first tag whose leading elements match all elements of
// the prefix, or nil.
func (t *T) GetFirst(prefix *tag.T) (t1 *tag.T) {
	if t == nil {
		return
	}
	for _, candidate := range t.t {
		if candidate.Len() < prefix.Len() {
			continue
		}
		match := true
		for i, p := range prefix.ToSliceOfBytes() {
			if !bytes.Equal(candidate.B(i), p) {
				match = false
				break
			}
		}
		if match {
			return candidate
		}
	}
	return
}

// GetAll returns every tag whose leading elements match all elements of the
// prefix.
func (t *T) GetAll(prefix *tag.T) (t1 *T) {
	t1 = New()
	if t == nil {
		return
	}
	for _, candidate := range t.t {
		if candidate.Len() < prefix.Len() {
			continue
		}
		match := true
		for i, p := range prefix.ToSliceOfBytes() {
			if !bytes.Equal(candidate.B(i), p) {
				match = false
				break
			}
		}
		if match {
			t1.t = append(t1.t, candidate)
		}
	}
	return
}

// Intersects tests event tags against filter tags: every filter tag (key
// "#x") must find an event tag with key x whose value is one of the filter
// tag's values.
func (t *T) Intersects(f *T) bool {
	if f.Len() == 0 {
		return true
	}
	if t == nil {
		return false
	}
	for _, ft := range f.t {
		key := ft.Key()
		if len(key) == 2 && key[0] == '#' {
			key = key[1:]
		}
		found := false
		for _, et := range t.t {
			if !bytes.Equal(et.Key(), key) {
				continue
			}
			for _, v := range ft.ToSliceOfBytes()[1:] {
				if bytes.Equal(et.Value(), v) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Equal tests whether two tag lists are identical.
func (t *T) Equal(t1 *T) bool {
	if t.Len() != t1.Len() {
		return false
	}
	for i := range t.t {
		if !t.t[i].Equal(t1.t[i]) {
			return false
		}
	}
	return true
}

// Clone makes a deep copy of the tag list.
func (t *T) Clone() (t1 *T) {
	t1 = &T{t: make([]*tag.T, len(t.t))}
	for i := range t.t {
		t1.t[i] = t.t[i].Clone()
	}
	return
}

// Marshal appends the JSON array-of-arrays form of the tag list to dst.
func (t *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '[')
	for i := range t.t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = t.t[i].Marshal(dst)
	}
	dst = append(dst, ']')
	b = dst
	return
}

// MarshalWithWhitespace appends an indented form of the tag list to dst for
// human reading.
func (t *T) MarshalWithWhitespace(dst []byte) (b []byte) {
	dst = append(dst, '[')
	for i := range t.t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '\n', '\t', '\t')
		dst = t.t[i].Marshal(dst)
	}
	if len(t.t) > 0 {
		dst = append(dst, '\n', '\t')
	}
	dst = append(dst, ']')
	b = dst
	return
}

// Unmarshal parses a JSON array of arrays of strings at the start of b,
// leaving the remainder in r.
func (t *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	for len(r) > 0 && isWs(r[0]) {
		r = r[1:]
	}
	if len(r) == 0 || r[0] != '[' {
		err = errorf.E("tags must start with '[': '%s'", b)
		return
	}
	r = r[1:]
	for len(r) > 0 {
		switch {
		case isWs(r[0]), r[0] == ',':
			r = r[1:]
		case r[0] == ']':
			r = r[1:]
			return
		case r[0] == '[':
			tg := tag.NewWithCap(4)
			if r, err = tg.Unmarshal(r); chk.E(err) {
				return
			}
			t.t = append(t.t, tg)
		default:
			err = errorf.E("unexpected '%c' in tags list: '%s'", r[0], b)
			return
		}
	}
	err = errorf.E("tags list not closed: '%s'", b)
	return
}

func isWs(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
