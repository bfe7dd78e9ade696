package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/crypto"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/source"
)

// TestSecret is the encryption secret used by fixtures.
const TestSecret = "test-secret"

// Key returns the normalized fixture key.
func Key(t testing.TB) []byte {
	t.Helper()
	key, err := crypto.NormalizeKey(TestSecret)
	if err != nil {
		t.Fatalf("normalizing key: %v", err)
	}
	return key
}

// EncryptedDocument encrypts plaintext under key with a random nonce and
// returns it in stored form.
func EncryptedDocument(t testing.TB, docID, plaintext string, key []byte) source.Document {
	t.Helper()
	nonce := make([]byte, crypto.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("generating nonce: %v", err)
	}
	ciphertext, tag, err := crypto.Encrypt([]byte(plaintext), nonce, key)
	if err != nil {
		t.Fatalf("encrypting fixture: %v", err)
	}
	return source.Document{
		DocID:            docID,
		EncryptedContent: hex.EncodeToString(ciphertext),
		IV:               hex.EncodeToString(nonce),
		AuthTag:          hex.EncodeToString(tag),
	}
}
