// Package kind is a codec for the nostr event kind field, with a registry of
// the kind numbers this system reads and writes, and the NIP-01 replaceability
// classification rules that determine how the relay stores them.
package kind

import (
	"troczen.dev/pkg/encoders/ints"
	"troczen.dev/pkg/utils/chk"
)

// T is the type of a nostr event kind.
type T struct {
	K uint16
}

// New creates a kind.T from any integer type.
func New[V uint | int | uint16 | uint32 | uint64 | int16 | int32 | int64](k V) *T {
	return &T{K: uint16(k)}
}

// Standard nostr kinds used by this system.
var (
	// ProfileMetadata is the user profile event, content is a JSON object.
	ProfileMetadata = New(0)
	// TextNote is a plain text note.
	TextNote = New(1)
	// FollowList is the p-tag list of keys a user follows.
	FollowList = New(3)
	// Deletion requests removal of referenced events.
	Deletion = New(5)
	// BadgeAward assigns a badge definition to a pubkey.
	BadgeAward = New(8)
	// ClientAuthentication is the NIP-42 AUTH response event.
	ClientAuthentication = New(22242)
	// BadgeDefinition describes a badge that can be awarded.
	BadgeDefinition = New(30008)
)

// TrocZen domain kinds. These are all parameterized replaceable so the relay
// keeps only the latest event per (author, kind, d) triple.
var (
	// Bond is a transferable value unit (bon d'échange) in a market.
	Bond = New(30303)
	// Circuit records a bond path that closed back to its issuer.
	Circuit = New(30304)
	// PermitDef describes a skill permit and its attestation threshold.
	PermitDef = New(30500)
	// PermitReq is a user's request to be issued a permit.
	PermitReq = New(30501)
	// Attestation endorses a permit request.
	Attestation = New(30502)
	// Credential is a W3C verifiable credential for a granted permit.
	Credential = New(30503)
)

// ToInt returns the kind as an int.
func (k *T) ToInt() int { return int(k.K) }

// ToU16 returns the kind as a uint16.
func (k *T) ToU16() uint16 { return k.K }

// Equal tests if two kinds are the same.
func (k *T) Equal(k2 *T) bool {
	if k == nil || k2 == nil {
		return false
	}
	return k.K == k2.K
}

// IsEphemeral means the event is not stored by relays.
func (k *T) IsEphemeral() bool { return k.K >= 20000 && k.K < 30000 }

// IsReplaceable means only the newest event per (author, kind) is stored.
func (k *T) IsReplaceable() bool {
	return k.K == 0 || k.K == 3 || (k.K >= 10000 && k.K < 20000)
}

// IsParameterizedReplaceable means only the newest event per (author, kind,
// d tag) is stored.
func (k *T) IsParameterizedReplaceable() bool {
	return k.K >= 30000 && k.K < 40000
}

// Marshal appends the decimal encoding of the kind to dst.
func (k *T) Marshal(dst []byte) (b []byte) {
	return ints.New(k.K).Marshal(dst)
}

// Unmarshal parses a decimal kind number at the start of b, leaving the
// remainder in r.
func (k *T) Unmarshal(b []byte) (r []byte, err error) {
	n := ints.New(0)
	if r, err = n.Unmarshal(b); chk.E(err) {
		return
	}
	k.K = n.Uint16()
	return
}
