// Package p256k implements the signer.I interface for nostr BIP-340
// signatures over secp256k1 using the btcec library.
package p256k

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// Signer is an implementation of signer.I that uses the btcec library.
type Signer struct {
	SecretKey *btcec.PrivateKey
	PublicKey *btcec.PublicKey
	pkb, skb  []byte
}

var _ signer.I = &Signer{}

// Generate creates a new Signer.
func (s *Signer) Generate() (err error) {
	if s.SecretKey, err = btcec.NewPrivateKey(); chk.E(err) {
		return
	}
	s.skb = s.SecretKey.Serialize()
	s.PublicKey = s.SecretKey.PubKey()
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitSec initialises a Signer using raw secret key bytes.
func (s *Signer) InitSec(sec []byte) (err error) {
	if len(sec) != btcec.PrivKeyBytesLen {
		err = errorf.E("sec key must be %d bytes", btcec.PrivKeyBytesLen)
		return
	}
	s.skb = sec
	s.SecretKey, s.PublicKey = btcec.PrivKeyFromBytes(sec)
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitPub initializes a signature verifier Signer from raw x-only public key
// bytes.
func (s *Signer) InitPub(pub []byte) (err error) {
	if s.PublicKey, err = schnorr.ParsePubKey(pub); chk.E(err) {
		return
	}
	s.pkb = pub
	return
}

// Sec returns the raw secret key bytes.
func (s *Signer) Sec() (b []byte) {
	if s == nil {
		return nil
	}
	return s.skb
}

// Pub returns the raw BIP-340 schnorr public key bytes.
func (s *Signer) Pub() (b []byte) {
	if s == nil {
		return nil
	}
	return s.pkb
}

// Sign a message with the Signer. Requires an initialised secret key.
func (s *Signer) Sign(msg []byte) (sig []byte, err error) {
	if s.SecretKey == nil {
		err = errorf.E("p256k: Signer not initialized")
		return
	}
	var si *schnorr.Signature
	if si, err = schnorr.Sign(s.SecretKey, msg); chk.E(err) {
		return
	}
	sig = si.Serialize()
	return
}

// Verify a message signature, only requires the public key is initialised.
func (s *Signer) Verify(msg, sig []byte) (valid bool, err error) {
	if s.PublicKey == nil {
		err = errorf.E("p256k: Pubkey not initialized")
		return
	}
	var si *schnorr.Signature
	if si, err = schnorr.ParseSignature(sig); chk.D(err) {
		err = errorf.E(
			"failed to parse signature:\n%d %0x", len(sig), sig,
		)
		return
	}
	valid = si.Verify(msg, s.PublicKey)
	return
}

// Zero wipes the bytes of the secret key.
func (s *Signer) Zero() {
	if s.SecretKey != nil {
		s.SecretKey.Zero()
	}
	for i := range s.skb {
		s.skb[i] = 0
	}
}

// ECDH creates a shared secret from a secret key and a provided x-only public
// key bytes. It is advised to hash this result for security reasons.
func (s *Signer) ECDH(pubkeyBytes []byte) (secret []byte, err error) {
	var pub *btcec.PublicKey
	if pub, err = btcec.ParsePubKey(
		append(
			[]byte{0x02}, pubkeyBytes...,
		),
	); chk.E(err) {
		return
	}
	secret = btcec.GenerateSharedSecret(s.SecretKey, pub)
	return
}
