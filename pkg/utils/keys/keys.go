// Package keys decodes nostr key material that may be provided either as
// NIP-19 bech32 (npub/nsec) or as raw 32 byte hex.
package keys

import (
	"github.com/btcsuite/btcd/btcutil/bech32"

	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

const (
	// NpubHRP is the bech32 human readable prefix of a public key.
	NpubHRP = "npub"
	// NsecHRP is the bech32 human readable prefix of a secret key.
	NsecHRP = "nsec"
)

// DecodeNpubOrHex decodes a public key given as npub bech32 or 64 character
// hex into its 32 byte binary form.
func DecodeNpubOrHex(v string) (pk []byte, err error) {
	return decode(v, NpubHRP)
}

// DecodeNsecOrHex decodes a secret key given as nsec bech32 or 64 character
// hex into its 32 byte binary form.
func DecodeNsecOrHex(v string) (sk []byte, err error) {
	return decode(v, NsecHRP)
}

func decode(v, hrp string) (b []byte, err error) {
	var prf string
	var bits5 []byte
	if prf, bits5, err = bech32.DecodeNoLimit(v); chk.T(err) {
		// try hex then
		if b, err = hex.Dec(v); chk.E(err) {
			err = errorf.E("key %s is neither bech32 %s nor hex", v, hrp)
			return
		}
		if len(b) != 32 {
			err = errorf.E("key %s decodes to %d bytes, want 32", v, len(b))
			return
		}
		return
	}
	if prf != hrp {
		err = errorf.E("key %s has prefix %s, expected %s", v, prf, hrp)
		return
	}
	if b, err = bech32.ConvertBits(bits5, 5, 8, false); chk.E(err) {
		return
	}
	if len(b) != 32 {
		err = errorf.E("key %s decodes to %d bytes, want 32", v, len(b))
		return
	}
	return
}

// EncodeNpub renders a 32 byte public key in bech32 npub form.
func EncodeNpub(pk []byte) (npub string, err error) {
	var bits5 []byte
	if bits5, err = bech32.ConvertBits(pk, 8, 5, true); chk.E(err) {
		return
	}
	if npub, err = bech32.Encode(NpubHRP, bits5); chk.E(err) {
		return
	}
	return
}

// EncodeNsec renders a 32 byte secret key in bech32 nsec form.
func EncodeNsec(sk []byte) (nsec string, err error) {
	var bits5 []byte
	if bits5, err = bech32.ConvertBits(sk, 8, 5, true); chk.E(err) {
		return
	}
	if nsec, err = bech32.Encode(NsecHRP, bits5); chk.E(err) {
		return
	}
	return
}
