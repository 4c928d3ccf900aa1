package crypt

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_EmptySecret(t *testing.T) {
	if _, err := New(""); err != ErrNoKey {
		t.Fatalf("got %v, want ErrNoKey", err)
	}
	if _, err := New("   "); err != ErrNoKey {
		t.Fatalf("got %v, want ErrNoKey", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	e, err := New("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	for _, plain := range []string{"hello world", "", "ü ñ 中文 🎉", strings.Repeat("x", 1000)} {
		ct, err := e.Encrypt(plain)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(ct, "|") {
			t.Fatalf("ciphertext %q missing iv separator", ct)
		}
		got, err := e.Decrypt(ct)
		if err != nil {
			t.Fatal(err)
		}
		if got != plain {
			t.Fatalf("round trip got %q, want %q", got, plain)
		}
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	e, err := New("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	a, err := e.Encrypt("same text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Encrypt("same text")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical output")
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	e, err := New("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	inputs := []string{
		"",
		"nodivider",
		"zz|zz",
		"abcd|",
		"abcd|abcd",
		"|0123456789abcdef0123456789abcdef",
	}
	for _, in := range inputs {
		if _, err := e.Decrypt(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: got %v, want ErrMalformed", in, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, _ := New("secret-a")
	b, _ := New("secret-b")
	ct, err := a.Encrypt("classified")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := b.Decrypt(ct); err == nil && got == "classified" {
		t.Fatal("decryption with the wrong key recovered the plaintext")
	}
}
