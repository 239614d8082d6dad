// Package tag is a codec for a single nostr event tag, an ordered list of
// strings whose first element is the tag key.
package tag

import (
	"bytes"

	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/utils/chk"
)

// T is a single tag of an event or filter.
type T struct {
	field [][]byte
}

// New creates a tag from a list of strings or byte slices.
func New[V string | []byte](fields ...V) (t *T) {
	t = &T{field: make([][]byte, 0, len(fields))}
	for _, f := range fields {
		t.field = append(t.field, []byte(f))
	}
	return
}

// NewWithCap creates an empty tag with a given capacity.
func NewWithCap(c int) *T { return &T{field: make([][]byte, 0, c)} }

// FromBytesSlice creates a tag wrapping the given byte slices without
// copying.
func FromBytesSlice(fields ...[]byte) *T { return &T{field: fields} }

// Len returns the number of elements in the tag.
func (t *T) Len() (l int) {
	if t == nil {
		return
	}
	return len(t.field)
}

// Less reports whether element i sorts before element j.
func (t *T) Less(i, j int) bool { return bytes.Compare(t.field[i], t.field[j]) < 0 }

// Swap exchanges two elements of the tag.
func (t *T) Swap(i, j int) { t.field[i], t.field[j] = t.field[j], t.field[i] }

// B returns element i of the tag as a byte slice.
func (t *T) B(i int) (b []byte) {
	if t == nil || i >= len(t.field) {
		return
	}
	return t.field[i]
}

// S returns element i of the tag as a string.
func (t *T) S(i int) (s string) { return string(t.B(i)) }

// Key returns the first element of the tag.
func (t *T) Key() (b []byte) { return t.B(0) }

// Value returns the second element of the tag, the conventional position of a
// tag's value.
func (t *T) Value() (b []byte) { return t.B(1) }

// Append adds elements to the end of the tag, creating it if necessary.
func (t *T) Append(b ...[]byte) (t1 *T) {
	if t == nil {
		return FromBytesSlice(b...)
	}
	t.field = append(t.field, b...)
	return t
}

// Contains tests whether any element of the tag equals b.
func (t *T) Contains(b []byte) bool {
	if t == nil {
		return false
	}
	for i := range t.field {
		if bytes.Equal(t.field[i], b) {
			return true
		}
	}
	return false
}

// Equal tests whether two tags have identical elements.
func (t *T) Equal(t1 *T) bool {
	if t.Len() != t1.Len() {
		return false
	}
	if t == nil {
		return true
	}
	for i := range t.field {
		if !bytes.Equal(t.field[i], t1.field[i]) {
			return false
		}
	}
	return true
}

// Clone makes a deep copy of the tag.
func (t *T) Clone() (t1 *T) {
	if t == nil {
		return
	}
	t1 = &T{field: make([][]byte, len(t.field))}
	for i := range t.field {
		t1.field[i] = make([]byte, len(t.field[i]))
		copy(t1.field[i], t.field[i])
	}
	return
}

// ToSliceOfBytes returns the underlying elements of the tag.
func (t *T) ToSliceOfBytes() (b [][]byte) {
	if t == nil {
		return
	}
	return t.field
}

// ToStringSlice returns the elements of the tag as strings.
func (t *T) ToStringSlice() (s []string) {
	s = make([]string, 0, t.Len())
	if t == nil {
		return
	}
	for i := range t.field {
		s = append(s, string(t.field[i]))
	}
	return
}

// Marshal appends the JSON array form of the tag to dst, escaping each
// element.
func (t *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '[')
	for i := range t.field {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = text.AppendQuote(dst, t.field[i], text.NostrEscape)
	}
	dst = append(dst, ']')
	b = dst
	return
}

// Unmarshal parses a JSON array of strings at the start of b, leaving the
// remainder in r.
func (t *T) Unmarshal(b []byte) (r []byte, err error) {
	var ff [][]byte
	if ff, r, err = text.UnmarshalStringArray(b); chk.E(err) {
		return
	}
	t.field = ff
	return
}
