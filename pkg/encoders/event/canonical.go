package event

import (
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/text"
)

// ToCanonical appends the canonical form of the event to dst: the JSON array
//
//	[0,"<pubkey>",<created_at>,<kind>,<tags>,"<content>"]
//
// with no whitespace and the content escaped by the nostr escaping rules.
// The SHA256 hash of this encoding is the event ID.
func (ev *E) ToCanonical(dst []byte) (b []byte) {
	b = dst
	b = append(b, "[0,\""...)
	b = hex.EncAppend(b, ev.Pubkey)
	b = append(b, "\","...)
	b = ev.CreatedAt.Marshal(b)
	b = append(b, ',')
	b = ev.Kind.Marshal(b)
	b = append(b, ',')
	b = ev.Tags.Marshal(b)
	b = append(b, ',')
	b = text.AppendQuote(b, ev.Content, text.NostrEscape)
	b = append(b, ']')
	return
}

// GetIDBytes returns the SHA256 hash of the canonical form of the event.
func (ev *E) GetIDBytes() []byte { return Hash(ev.ToCanonical(nil)) }
