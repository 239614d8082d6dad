// Package event provides a codec for nostr events: the wire format with ID
// and signature, and the canonical form that is hashed to produce the ID.
package event

import (
	"lukechampine.com/frand"

	"github.com/minio/sha256-simd"

	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/text"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/utils/chk"
)

// E is the primary datatype of nostr. This is the form of the structure that
// defines its JSON string-based format.
type E struct {

	// ID is the SHA256 hash of the canonical encoding of the event
	ID []byte

	// Pubkey is the public key of the event creator in binary format
	Pubkey []byte

	// CreatedAt is the UNIX timestamp of the event according to the event
	// creator (never trust a timestamp!)
	CreatedAt *timestamp.T

	// Kind is the nostr protocol code for the type of event. See kind.T
	Kind *kind.T

	// Tags are a list of tags, which are a list of strings usually structured
	// as a 3 layer scheme indicating specific features of an event.
	Tags *tags.T

	// Content is an arbitrary string that can contain anything, but usually
	// conforming to a specification relating to the Kind and the Tags.
	Content []byte

	// Sig is the signature on the ID hash that validates as coming from the
	// Pubkey in binary format.
	Sig []byte
}

// S is an array of event.E that sorts in reverse chronological order.
type S []*E

// Len returns the length of the event.Es.
func (ev S) Len() int { return len(ev) }

// Less returns whether the first is newer than the second (larger unix
// timestamp).
func (ev S) Less(i, j int) bool { return ev[i].CreatedAt.I64() > ev[j].CreatedAt.I64() }

// Swap two indexes of the event.Es with each other.
func (ev S) Swap(i, j int) { ev[i], ev[j] = ev[j], ev[i] }

// C is a channel that carries event.E.
type C chan *E

// New makes a new event.E.
func New() (ev *E) { return &E{} }

// Serialize renders an event.E into minified JSON.
func (ev *E) Serialize() (b []byte) { return ev.Marshal(nil) }

// SerializeIndented renders an event.E into nicely readable whitespaced JSON.
func (ev *E) SerializeIndented() (b []byte) {
	return ev.MarshalWithWhitespace(nil, true)
}

// IDString returns the event ID as a hex-encoded string.
func (ev *E) IDString() (s string) { return hex.Enc(ev.ID) }

// PubKeyString returns the pubkey as a hex-encoded string.
func (ev *E) PubKeyString() (s string) { return hex.Enc(ev.Pubkey) }

// SigString returns the signature as a hex-encoded string.
func (ev *E) SigString() (s string) { return hex.Enc(ev.Sig) }

// ContentString returns the content field as a string.
func (ev *E) ContentString() (s string) { return string(ev.Content) }

// TagStrings returns the tags as a slice of slice of strings.
func (ev *E) TagStrings() (s [][]string) { return ev.Tags.ToStringsSlice() }

// CreatedAtInt64 returns the created_at timestamp as a standard int64.
func (ev *E) CreatedAtInt64() (i int64) { return ev.CreatedAt.I64() }

// KindInt returns the kind as a plain int.
func (ev *E) KindInt() (i int) { return ev.Kind.ToInt() }

// Hash is a little helper generate a hash and return a slice instead of an
// array.
func Hash(in []byte) (out []byte) {
	h := sha256.Sum256(in)
	return h[:]
}

// GenerateRandomTextNoteEvent creates a generic event.E with random text
// content.
func GenerateRandomTextNoteEvent(sign signer.I, maxSize int) (
	ev *E,
	err error,
) {

	l := frand.Intn(maxSize * 6 / 8) // account for base64 expansion
	ev = &E{
		Pubkey:    sign.Pub(),
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Content:   text.NostrEscape(nil, frand.Bytes(l)),
		Tags:      tags.New(),
	}
	if err = ev.Sign(sign); chk.E(err) {
		return
	}
	return
}
