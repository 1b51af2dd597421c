package crypto

import (
	"bytes"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 0xab
	raw[19] = 0xcd
	addr := NewAddress(TDPPrefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "tdp1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != TDPPrefix {
		t.Fatalf("prefix = %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("bytes mismatch: %x != %x", decoded.Bytes(), raw)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected malformed string to be rejected")
	}
	// Valid bech32 but wrong payload length.
	if _, err := DecodeAddress("tdp1qqqq"); err == nil {
		t.Fatal("expected short payload to be rejected")
	}
}

func TestKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatal("restored key derives a different address")
	}
}

func TestSignRecoverable(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := ethcrypto.Keccak256([]byte("payload"))
	signature, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(signature))
	}
	recovered, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if ethcrypto.PubkeyToAddress(*recovered) != ethcrypto.PubkeyToAddress(*key.PubKey().PublicKey) {
		t.Fatal("recovered address does not match signer")
	}
}
