// Package kinds is a codec for the kinds list field of a nostr filter.
package kinds

import (
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// T is a list of kind.T.
type T struct {
	K []*kind.T
}

// New creates a kinds.T from a list of kind.T.
func New(k ...*kind.T) *T { return &T{K: k} }

// NewWithCap creates an empty kinds.T with a given capacity.
func NewWithCap(c int) *T { return &T{K: make([]*kind.T, 0, c)} }

// FromIntSlice creates a kinds.T out of a list of plain integer kind numbers.
func FromIntSlice(is []int) (k *T) {
	k = NewWithCap(len(is))
	for i := range is {
		k.K = append(k.K, kind.New(is[i]))
	}
	return
}

// Len returns the number of kinds in the list.
func (k *T) Len() (l int) {
	if k == nil {
		return
	}
	return len(k.K)
}

// Less reports whether element i sorts before element j.
func (k *T) Less(i, j int) bool { return k.K[i].K < k.K[j].K }

// Swap exchanges two elements of the list.
func (k *T) Swap(i, j int) { k.K[i], k.K[j] = k.K[j], k.K[i] }

// ToUint16 returns the kinds as a slice of uint16.
func (k *T) ToUint16() (o []uint16) {
	for i := range k.K {
		o = append(o, k.K[i].ToU16())
	}
	return
}

// Contains tests if a kind is in the list.
func (k *T) Contains(s *kind.T) bool {
	if k == nil || s == nil {
		return false
	}
	for i := range k.K {
		if k.K[i].Equal(s) {
			return true
		}
	}
	return false
}

// Equals tests if two lists contain the same kinds in the same order.
func (k *T) Equals(t1 *T) bool {
	if k.Len() != t1.Len() {
		return false
	}
	for i := range k.K {
		if !k.K[i].Equal(t1.K[i]) {
			return false
		}
	}
	return true
}

// Marshal appends the JSON array form of the list to dst.
func (k *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '[')
	for i := range k.K {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = k.K[i].Marshal(dst)
	}
	dst = append(dst, ']')
	b = dst
	return
}

// Unmarshal parses a JSON array of kind numbers at the start of b, leaving
// the remainder in r.
func (k *T) Unmarshal(b []byte) (r []byte, err error) {
	r = b
	if len(r) == 0 || r[0] != '[' {
		err = errorf.E("kinds list must start with '[': '%s'", b)
		return
	}
	r = r[1:]
	for len(r) > 0 {
		switch r[0] {
		case ']':
			r = r[1:]
			return
		case ',', ' ', '\t', '\n', '\r':
			r = r[1:]
		default:
			kk := kind.New(0)
			if r, err = kk.Unmarshal(r); chk.E(err) {
				return
			}
			k.K = append(k.K, kk)
		}
	}
	err = errorf.E("kinds list not closed: '%s'", b)
	return
}
