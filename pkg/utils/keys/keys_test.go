package keys

import (
	"bytes"
	"strings"
	"testing"

	"troczen.dev/pkg/encoders/hex"
)

const pkHex = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestDecodeHexFallback(t *testing.T) {
	pk, err := DecodeNpubOrHex(pkHex)
	if err != nil {
		t.Fatalf("hex pubkey rejected: %v", err)
	}
	if hex.Enc(pk) != pkHex {
		t.Errorf("got %s, want %s", hex.Enc(pk), pkHex)
	}
	sk, err := DecodeNsecOrHex(strings.Repeat("01", 32))
	if err != nil {
		t.Fatalf("hex secret rejected: %v", err)
	}
	if len(sk) != 32 {
		t.Errorf("got %d bytes, want 32", len(sk))
	}
}

func TestNpubRoundTrip(t *testing.T) {
	var pk []byte
	var err error
	if pk, err = hex.Dec(pkHex); err != nil {
		t.Fatal(err)
	}
	npub, err := EncodeNpub(pk)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(npub, NpubHRP+"1") {
		t.Errorf("unexpected encoding %s", npub)
	}
	got, err := DecodeNpubOrHex(npub)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !bytes.Equal(got, pk) {
		t.Errorf("got %s, want %s", hex.Enc(got), pkHex)
	}
}

func TestNsecRoundTrip(t *testing.T) {
	sk := bytes.Repeat([]byte{0x42}, 32)
	nsec, err := EncodeNsec(sk)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeNsecOrHex(nsec)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !bytes.Equal(got, sk) {
		t.Error("round trip altered the key")
	}
}

func TestDecodeWrongPrefix(t *testing.T) {
	nsec, err := EncodeNsec(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = DecodeNpubOrHex(nsec); err == nil {
		t.Error("nsec accepted where an npub was expected")
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, v := range []string{"", "zzzz", "deadbeef", pkHex + "00"} {
		if _, err := DecodeNpubOrHex(v); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}
