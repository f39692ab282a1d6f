package crypto

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("correct horse battery staple")
	plaintext := []byte("backup payload")

	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed output contains the plaintext")
	}

	opened, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := Seal(DeriveKey("one"), []byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := Open(DeriveKey("two"), sealed); err == nil {
		t.Error("Open() with the wrong key succeeded")
	}
}

func TestOpenTampered(t *testing.T) {
	key := DeriveKey("k")
	sealed, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := Open(key, sealed); err == nil {
		t.Error("Open() of tampered ciphertext succeeded")
	}
}

func TestOpenTruncated(t *testing.T) {
	if _, err := Open(DeriveKey("k"), []byte("short")); err == nil {
		t.Error("Open() of truncated input succeeded")
	}
}

func TestSealUniqueNonces(t *testing.T) {
	key := DeriveKey("k")
	a, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	b, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext produced identical output")
	}
}
