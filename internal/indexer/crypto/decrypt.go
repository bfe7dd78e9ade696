package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
)

const (
	NonceSize = 12
	TagSize   = 16
)

// Decrypt authenticates and decrypts one document. An empty ciphertext,
// nonce or tag means there is nothing to index and yields "" with no error.
// Tag mismatches (tampering, wrong key) fail with ErrAuthentication and
// plaintext that is not valid UTF-8 fails with ErrDecode.
func Decrypt(ciphertext, nonce, tag, key []byte) (string, error) {
	if len(ciphertext) == 0 || len(nonce) == 0 || len(tag) == 0 {
		return "", nil
	}
	if len(key) != KeySize {
		return "", apperrors.Newf(apperrors.ErrConfiguration, "key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(nonce) != NonceSize {
		return "", apperrors.Newf(apperrors.ErrAuthentication, "nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	if len(tag) != TagSize {
		return "", apperrors.Newf(apperrors.ErrAuthentication, "tag must be %d bytes, got %d", TagSize, len(tag))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrConfiguration, "creating cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrConfiguration, "creating gcm: %v", err)
	}

	// GCM expects the tag appended to the ciphertext.
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperrors.New(apperrors.ErrAuthentication, "message authentication failed")
	}
	if !utf8.Valid(plaintext) {
		return "", apperrors.New(apperrors.ErrDecode, "plaintext is not valid UTF-8")
	}
	return string(plaintext), nil
}

// DecryptHex decodes the stored hex envelope and calls Decrypt.
func DecryptHex(ciphertextHex, nonceHex, tagHex string, key []byte) (string, error) {
	if ciphertextHex == "" || nonceHex == "" || tagHex == "" {
		return "", nil
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrDecode, "ciphertext is not hex: %v", err)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrDecode, "iv is not hex: %v", err)
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrDecode, "auth tag is not hex: %v", err)
	}
	return Decrypt(ciphertext, nonce, tag, key)
}

// Encrypt seals plaintext under key and nonce and returns the ciphertext and
// tag separately, in the layout the document store uses. It is the inverse
// of Decrypt and is used by fixtures and tooling.
func Encrypt(plaintext, nonce, key []byte) (ciphertext, tag []byte, err error) {
	if len(nonce) != NonceSize {
		return nil, nil, apperrors.Newf(apperrors.ErrConfiguration, "nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrConfiguration, "creating cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrConfiguration, "creating gcm: %v", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	return sealed[:split], sealed[split:], nil
}
