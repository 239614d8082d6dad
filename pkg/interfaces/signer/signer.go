// Package signer defines an interface for BIP-340 schnorr signing and
// verification of nostr event IDs, abstracting over the key handling
// implementation.
package signer

// I is the interface for signing and verifying messages with secp256k1
// schnorr signatures, and deriving ECDH shared secrets.
type I interface {
	// Generate creates a fresh key pair.
	Generate() (err error)
	// InitSec initialises the signer from raw secret key bytes.
	InitSec(sec []byte) (err error)
	// InitPub initialises a verify-only signer from raw x-only public key
	// bytes.
	InitPub(pub []byte) (err error)
	// Sec returns the raw secret key bytes.
	Sec() (b []byte)
	// Pub returns the raw BIP-340 x-only public key bytes.
	Pub() (b []byte)
	// Sign a message digest, returning the 64 byte schnorr signature.
	Sign(msg []byte) (sig []byte, err error)
	// Verify a message digest against a signature.
	Verify(msg, sig []byte) (valid bool, err error)
	// Zero wipes the secret key bytes.
	Zero()
	// ECDH derives a shared secret from our secret key and a counterparty
	// x-only public key.
	ECDH(pub []byte) (secret []byte, err error)
}
