// Package filter is a codec for nostr filters (queries) and includes tools
// for matching them to events and a canonical encoding scheme so the same set
// of fields always produces identical JSON.
package filter

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/minio/sha256-simd"
	"lukechampine.com/frand"

	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/ints"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
	"troczen.dev/pkg/utils/pointers"
)

// F is the primary query form for requesting events from a nostr relay.
//
// Ids and Authors hold binary values, matching the binary ID and Pubkey
// fields of event.E. Tag filter values are kept in their wire string form so
// they compare directly against event tag values.
//
// A consistent sort order is applied on marshal so the same *set* of fields
// produces identical JSON no matter what order they were provided in.
type F struct {
	Ids     *tag.T       `json:"ids,omitempty"`
	Kinds   *kinds.T     `json:"kinds,omitempty"`
	Authors *tag.T       `json:"authors,omitempty"`
	Tags    *tags.T      `json:"-,omitempty"`
	Since   *timestamp.T `json:"since,omitempty"`
	Until   *timestamp.T `json:"until,omitempty"`
	Search  []byte       `json:"search,omitempty"`
	Limit   *uint        `json:"limit,omitempty"`
}

// New creates a new, reasonably initialized filter that will be ready for
// most uses without further allocations.
func New() (f *F) {
	return &F{
		Ids:     tag.NewWithCap(10),
		Kinds:   kinds.NewWithCap(10),
		Authors: tag.NewWithCap(10),
		Tags:    tags.New(),
	}
}

// Clone creates a new filter with the same elements, with the Limit field set
// to 1 because a clone implicitly means one reference.
func (f *F) Clone() (clone *F) {
	lim := new(uint)
	*lim = 1
	clone = &F{
		Tags:  tags.New(),
		Limit: lim,
	}
	if f.Ids != nil {
		clone.Ids = f.Ids.Clone()
	}
	if f.Kinds != nil {
		clone.Kinds = kinds.New(f.Kinds.K...)
	}
	if f.Authors != nil {
		clone.Authors = f.Authors.Clone()
	}
	if f.Tags != nil {
		clone.Tags = f.Tags.Clone()
	}
	if f.Since != nil {
		clone.Since = timestamp.FromUnix(f.Since.I64())
	}
	if f.Until != nil {
		clone.Until = timestamp.FromUnix(f.Until.I64())
	}
	if len(f.Search) > 0 {
		clone.Search = make([]byte, len(f.Search))
		copy(clone.Search, f.Search)
	}
	return
}

var (
	// IDs is the JSON object key for IDs.
	IDs = []byte("ids")
	// Kinds is the JSON object key for Kinds.
	Kinds = []byte("kinds")
	// Authors is the JSON object key for Authors.
	Authors = []byte("authors")
	// Since is the JSON object key for Since.
	Since = []byte("since")
	// Until is the JSON object key for Until.
	Until = []byte("until")
	// Limit is the JSON object key for Limit.
	Limit = []byte("limit")
	// Search is the JSON object key for Search.
	Search = []byte("search")
)

// Marshal a filter into raw JSON bytes, minified. The field ordering and sort
// of fields is canonicalized so that a hash can identify the same filter.
func (f *F) Marshal(dst []byte) (b []byte) {
	var first bool
	// sort the fields so they come out the same
	f.Sort()
	// open parentheses
	dst = append(dst, '{')
	if f.Ids != nil && f.Ids.Len() > 0 {
		first = true
		dst = text.JSONKey(dst, IDs)
		dst = text.MarshalHexArray(dst, f.Ids.ToSliceOfBytes())
	}
	if f.Kinds.Len() > 0 {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
		dst = text.JSONKey(dst, Kinds)
		dst = f.Kinds.Marshal(dst)
	}
	if f.Authors != nil && f.Authors.Len() > 0 {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
		dst = text.JSONKey(dst, Authors)
		dst = text.MarshalHexArray(dst, f.Authors.ToSliceOfBytes())
	}
	if f.Tags.Len() > 0 {
		// tags are stored as tags with the initial element the "#a" key and
		// the rest the value list, eg:
		//
		//     [["#p","<pubkey1>","<pubkey3>"],["#t","hashtag","stuff"]]
		//
		for _, tg := range f.Tags.ToSliceOfTags() {
			if tg == nil {
				continue
			}
			// the "key" field must be '#' and one alpha character
			if tg.Len() < 2 || len(tg.Key()) != 2 {
				continue
			}
			tKey := tg.Key()
			if tKey[0] != '#' || !isAlpha(tKey[1]) {
				continue
			}
			if first {
				dst = append(dst, ',')
			} else {
				first = true
			}
			dst = append(dst, '"', tKey[0], tKey[1], '"', ':')
			dst = append(dst, '[')
			values := tg.ToSliceOfBytes()[1:]
			for i, value := range values {
				if i > 0 {
					dst = append(dst, ',')
				}
				dst = text.AppendQuote(dst, value, text.NostrEscape)
			}
			dst = append(dst, ']')
		}
	}
	if f.Since != nil && f.Since.U64() > 0 {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
		dst = text.JSONKey(dst, Since)
		dst = f.Since.Marshal(dst)
	}
	if f.Until != nil && f.Until.U64() > 0 {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
		dst = text.JSONKey(dst, Until)
		dst = f.Until.Marshal(dst)
	}
	if len(f.Search) > 0 {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
		dst = text.JSONKey(dst, Search)
		dst = text.AppendQuote(dst, f.Search, text.NostrEscape)
	}
	if pointers.Present(f.Limit) {
		if first {
			dst = append(dst, ',')
		}
		dst = text.JSONKey(dst, Limit)
		dst = ints.New(*f.Limit).Marshal(dst)
	}
	// close parentheses
	dst = append(dst, '}')
	b = dst
	return
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Serialize a filter.F into raw minified JSON bytes.
func (f *F) Serialize() (b []byte) { return f.Marshal(nil) }

// states of the unmarshaler
const (
	beforeOpen = iota
	openParen
	inKey
	inKV
	inVal
	betweenKV
)

// Unmarshal a filter from raw JSON bytes into the runtime format, tolerating
// whitespace between tokens.
func (f *F) Unmarshal(b []byte) (r []byte, err error) {
	if f.Tags == nil {
		f.Tags = tags.New()
	}
	r = b
	var key []byte
	var state int
	for ; len(r) > 0; r = r[1:] {
		switch state {
		case beforeOpen:
			if r[0] == '{' {
				state = openParen
			}
		case openParen:
			if r[0] == '"' {
				state = inKey
			}
		case inKey:
			if r[0] == '"' {
				state = inKV
			} else {
				key = append(key, r[0])
			}
		case inKV:
			if r[0] == ':' {
				state = inVal
			}
		case inVal:
			if isWs(r[0]) {
				continue
			}
			if len(key) < 1 {
				err = errorf.E("filter key zero length: '%s'\n'%s'", b, r)
				return
			}
			switch key[0] {
			case '#':
				// tags start with # and have 1 letter
				if len(key) != 2 || !isAlpha(key[1]) {
					err = errorf.E(
						"filter tag keys can only be # and one alpha character: '%s'\n%s",
						key, b,
					)
					return
				}
				k := make([]byte, len(key))
				copy(k, key)
				var ff [][]byte
				if ff, r, err = text.UnmarshalStringArray(r); chk.E(err) {
					return
				}
				switch key[1] {
				case 'e', 'p':
					// these tag values must all be 64 character hexadecimal
					for _, v := range ff {
						if len(v) != 2*sha256.Size {
							err = errorf.E(
								"invalid length for %s tag value: '%s'", k, v,
							)
							return
						}
						if _, err = hex.Dec(string(v)); chk.E(err) {
							return
						}
					}
				}
				ff = append([][]byte{k}, ff...)
				f.Tags = f.Tags.AppendTags(tag.FromBytesSlice(ff...))
				state = betweenKV
			case IDs[0]:
				if !bytes.Equal(key, IDs) {
					goto invalid
				}
				var ff [][]byte
				if ff, r, err = text.UnmarshalHexArray(
					r, sha256.Size,
				); chk.E(err) {
					return
				}
				f.Ids = tag.FromBytesSlice(ff...)
				state = betweenKV
			case Kinds[0]:
				if !bytes.Equal(key, Kinds) {
					goto invalid
				}
				f.Kinds = kinds.NewWithCap(0)
				if r, err = f.Kinds.Unmarshal(r); chk.E(err) {
					return
				}
				state = betweenKV
			case Authors[0]:
				if !bytes.Equal(key, Authors) {
					goto invalid
				}
				var ff [][]byte
				if ff, r, err = text.UnmarshalHexArray(
					r, schnorr.PubKeyBytesLen,
				); chk.E(err) {
					return
				}
				f.Authors = tag.FromBytesSlice(ff...)
				state = betweenKV
			case Until[0]:
				if !bytes.Equal(key, Until) {
					goto invalid
				}
				u := ints.New(0)
				if r, err = u.Unmarshal(r); chk.E(err) {
					return
				}
				f.Until = timestamp.FromUnix(int64(u.N))
				state = betweenKV
			case Limit[0]:
				if !bytes.Equal(key, Limit) {
					goto invalid
				}
				l := ints.New(0)
				if r, err = l.Unmarshal(r); chk.E(err) {
					return
				}
				u := uint(l.N)
				f.Limit = &u
				state = betweenKV
			case Search[0]:
				switch {
				case bytes.Equal(key, Search):
					var txt []byte
					if txt, r, err = text.UnmarshalQuoted(r); chk.E(err) {
						return
					}
					f.Search = txt
					state = betweenKV
				case bytes.Equal(key, Since):
					s := ints.New(0)
					if r, err = s.Unmarshal(r); chk.E(err) {
						return
					}
					f.Since = timestamp.FromUnix(int64(s.N))
					state = betweenKV
				default:
					goto invalid
				}
			default:
				goto invalid
			}
			key = key[:0]
		case betweenKV:
			switch {
			case r[0] == '}':
				r = r[1:]
				return
			case r[0] == ',':
				state = openParen
			case r[0] == '"':
				state = inKey
			}
		}
		if len(r) == 0 {
			return
		}
		if state == openParen || state == inVal || state == betweenKV {
			if r[0] == '}' {
				r = r[1:]
				return
			}
		}
	}
	return
invalid:
	err = errorf.E("invalid filter key '%s' in\n'%s'", key, b)
	return
}

func isWs(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Matches checks a filter against an event and determines if the event
// matches the filter.
func (f *F) Matches(ev *event.E) bool {
	if ev == nil {
		return false
	}
	if f.Ids.Len() > 0 && !f.Ids.Contains(ev.ID) {
		return false
	}
	if f.Kinds.Len() > 0 && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Authors.Len() > 0 && !f.Authors.Contains(ev.Pubkey) {
		return false
	}
	if f.Tags.Len() > 0 && !ev.Tags.Intersects(f.Tags) {
		return false
	}
	if f.Since.Int() != 0 && ev.CreatedAt.I64() < f.Since.I64() {
		return false
	}
	if f.Until.Int() != 0 && ev.CreatedAt.I64() > f.Until.I64() {
		return false
	}
	return true
}

// MatchesIgnoringTimestamp checks a filter against an event but disregards
// the since/until constraints, as is done for subscriptions that have passed
// EOSE where the relay controls what is in the window.
func (f *F) MatchesIgnoringTimestamp(ev *event.E) bool {
	if ev == nil {
		return false
	}
	if f.Ids.Len() > 0 && !f.Ids.Contains(ev.ID) {
		return false
	}
	if f.Kinds.Len() > 0 && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Authors.Len() > 0 && !f.Authors.Contains(ev.Pubkey) {
		return false
	}
	if f.Tags.Len() > 0 && !ev.Tags.Intersects(f.Tags) {
		return false
	}
	return true
}

// Fingerprint returns an 8 byte truncated sha256 hash of the filter in the
// canonical form created by Marshal, with the Limit field removed.
func (f *F) Fingerprint() (fp uint64, err error) {
	lim := f.Limit
	f.Limit = nil
	var b []byte
	b = f.Marshal(b)
	h := sha256.Sum256(b)
	hb := h[:]
	fp = binary.LittleEndian.Uint64(hb)
	f.Limit = lim
	return
}

// Sort the fields of a filter so a fingerprint on a filter that has the same
// set of content produces the same fingerprint.
func (f *F) Sort() {
	if f.Ids != nil {
		sort.Sort(f.Ids)
	}
	if f.Kinds != nil {
		sort.Sort(f.Kinds)
	}
	if f.Authors != nil {
		sort.Sort(f.Authors)
	}
	if f.Tags != nil {
		sort.Sort(f.Tags)
	}
}

func arePointerValuesEqual[V comparable](a *V, b *V) bool {
	if a == nil && b == nil {
		return true
	}
	if a != nil && b != nil {
		return *a == *b
	}
	return false
}

// Equal checks a filter against another filter to see if they are the same
// filter.
func (f *F) Equal(b *F) bool {
	// sort the fields so they come out the same
	f.Sort()
	b.Sort()
	if !f.Kinds.Equals(b.Kinds) ||
		!f.Ids.Equal(b.Ids) ||
		!f.Authors.Equal(b.Authors) ||
		!arePointerValuesEqual(f.Since, b.Since) ||
		!arePointerValuesEqual(f.Until, b.Until) ||
		!bytes.Equal(f.Search, b.Search) ||
		!f.Tags.Equal(b.Tags) {
		return false
	}
	return true
}

// GenFilter is a testing tool to create random arbitrary filters for tests.
func GenFilter() (f *F, err error) {
	f = New()
	n := frand.Intn(16)
	for range n {
		id := make([]byte, sha256.Size)
		frand.Read(id)
		f.Ids = f.Ids.Append(id)
	}
	n = frand.Intn(16)
	for range n {
		f.Kinds.K = append(f.Kinds.K, kind.New(frand.Intn(65535)))
	}
	n = frand.Intn(16)
	for range n {
		s := &p256k.Signer{}
		if err = s.Generate(); chk.E(err) {
			return
		}
		f.Authors = f.Authors.Append(s.Pub())
	}
	for b := 'a'; b <= 'z'; b++ {
		if b != 'e' && b != 'p' && frand.Intn(4) != 0 {
			continue
		}
		l := frand.Intn(6)
		var idb [][]byte
		for range l {
			var raw []byte
			if b == 'e' || b == 'p' {
				raw = make([]byte, sha256.Size)
			} else {
				raw = make([]byte, frand.Intn(31)+1)
			}
			frand.Read(raw)
			id := make([]byte, 0, len(raw)*2)
			id = hex.EncAppend(id, raw)
			idb = append(idb, id)
		}
		if len(idb) == 0 {
			continue
		}
		idb = append([][]byte{{'#', byte(b)}}, idb...)
		f.Tags = f.Tags.AppendTags(tag.FromBytesSlice(idb...))
	}
	tn := int(timestamp.Now().I64())
	f.Since = timestamp.FromUnix(int64(tn - frand.Intn(10000)))
	f.Until = timestamp.Now()
	f.Search = []byte("token search text")
	return
}
