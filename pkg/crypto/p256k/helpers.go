package p256k

import (
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/utils/chk"
)

// NewSecFromHex creates a signing capable Signer from a hex encoded secret
// key.
func NewSecFromHex[V []byte | string](skh V) (sign signer.I, err error) {
	var sk []byte
	if sk, err = hex.Dec(string(skh)); chk.E(err) {
		return
	}
	sign = &Signer{}
	if err = sign.InitSec(sk); chk.E(err) {
		return
	}
	return
}

// NewPubFromHex creates a verify-only Signer from a hex encoded x-only public
// key.
func NewPubFromHex[V []byte | string](pkh V) (sign signer.I, err error) {
	var pk []byte
	if pk, err = hex.Dec(string(pkh)); chk.E(err) {
		return
	}
	sign = &Signer{}
	if err = sign.InitPub(pk); chk.E(err) {
		return
	}
	return
}

// HexToBin decodes a hex string to binary.
func HexToBin(hexStr string) (b []byte, err error) {
	if b, err = hex.Dec(hexStr); chk.E(err) {
		return
	}
	return
}
