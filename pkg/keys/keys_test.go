package keys

import (
	"encoding/base64"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignerKeyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	masterKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}

	sealed, err := EncryptSignerKey(key, masterKey)
	if err != nil {
		t.Fatalf("EncryptSignerKey: %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(sealed); err != nil {
		t.Errorf("sealed key is not valid base64: %v", err)
	}

	opened, err := DecryptSignerKey(sealed, masterKey)
	if err != nil {
		t.Fatalf("DecryptSignerKey: %v", err)
	}
	if crypto.PubkeyToAddress(opened.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("decrypted key does not match the original")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	masterKey1, _ := GenerateMasterKey()
	masterKey2, _ := GenerateMasterKey()

	sealed, err := EncryptSignerKey(key, masterKey1)
	if err != nil {
		t.Fatalf("EncryptSignerKey: %v", err)
	}
	if _, err := DecryptSignerKey(sealed, masterKey2); err == nil {
		t.Error("expected error decrypting with wrong key")
	}
}

func TestPurposesAreSeparated(t *testing.T) {
	masterKey, _ := GenerateMasterKey()
	a, err := NewCipher(masterKey, "purpose-a")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	b, err := NewCipher(masterKey, "purpose-b")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	sealed, err := a.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(sealed); err == nil {
		t.Error("expected a different purpose key to fail")
	}
	plain, err := a.Decrypt(sealed)
	if err != nil || string(plain) != "secret" {
		t.Errorf("round trip failed: %q, %v", plain, err)
	}
}

func TestInvalidMasterKeySize(t *testing.T) {
	for _, size := range []int{16, 64} {
		if _, err := NewCipher(make([]byte, size), PurposeSigner); err == nil {
			t.Errorf("expected error for %d byte master key", size)
		}
	}
}

func TestMasterKeyFromEnv(t *testing.T) {
	masterKey, _ := GenerateMasterKey()
	t.Setenv("TEST_MASTER_KEY", MasterKeyToBase64(masterKey))

	got, err := MasterKeyFromEnv("TEST_MASTER_KEY")
	if err != nil {
		t.Fatalf("MasterKeyFromEnv: %v", err)
	}
	if string(got) != string(masterKey) {
		t.Error("master key mismatch")
	}

	if _, err := MasterKeyFromEnv("TEST_MASTER_KEY_UNSET"); err == nil {
		t.Error("expected error for unset variable")
	}

	t.Setenv("TEST_MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	if _, err := MasterKeyFromEnv("TEST_MASTER_KEY"); err == nil {
		t.Error("expected error for short key")
	}
}
