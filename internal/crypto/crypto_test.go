package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := `{"summary": "archived analysis payload"}`
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip = %q", got)
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	a, _ := enc.Encrypt("same input")
	b, _ := enc.Encrypt("same input")
	if a == b {
		t.Error("identical plaintexts produced identical ciphertexts")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()
	enc1, _ := NewEncryptor(key1)
	enc2, _ := NewEncryptor(key2)

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Error("decryption with wrong key succeeded")
	}
}

func TestDecryptTampered(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	ciphertext, _ := enc.Encrypt("secret")
	tampered := strings.Replace(ciphertext, string(ciphertext[len(ciphertext)-2]), "A", 1)
	if tampered == ciphertext {
		tampered = "B" + ciphertext[1:]
	}
	if _, err := enc.Decrypt(tampered); err == nil {
		t.Error("tampered ciphertext decrypted")
	}
}

func TestNewEncryptorRejectsBadKey(t *testing.T) {
	if _, err := NewEncryptor([]byte("short")); err != ErrInvalidKey {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestEmptyStringPassthrough(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	ct, err := enc.Encrypt("")
	if err != nil || ct != "" {
		t.Errorf("Encrypt(\"\") = %q, %v", ct, err)
	}
	pt, err := enc.Decrypt("")
	if err != nil || pt != "" {
		t.Errorf("Decrypt(\"\") = %q, %v", pt, err)
	}
}
