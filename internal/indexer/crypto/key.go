// Package crypto decrypts documents stored with AES-256-GCM. The stored
// envelope is three hex strings: ciphertext, a 96-bit nonce and a 128-bit
// authentication tag. No associated data is used.
package crypto

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Padding is the byte used to fill short secrets up to KeySize.
type Padding byte

const (
	PadZero      Padding = 0x00
	PadASCIIZero Padding = '0'
)

// PaddingFromConfig maps a config.IndexerConfig.KeyPadding name to a Padding.
func PaddingFromConfig(name string) (Padding, error) {
	switch name {
	case config.PaddingZero, "":
		return PadZero, nil
	case config.PaddingASCIIZero:
		return PadASCIIZero, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrConfiguration, "unknown key padding %q", name)
	}
}

// LegacyKey fits secret to exactly KeySize bytes: shorter secrets are
// right-padded with pad, longer ones are truncated.
//
// This is NOT a key derivation function. It exists only so that documents
// encrypted by the existing uploader remain readable; do not use it for new
// data.
func LegacyKey(secret string, pad Padding) ([]byte, error) {
	if secret == "" {
		return nil, apperrors.New(apperrors.ErrConfiguration, "encryption secret is empty")
	}
	key := make([]byte, KeySize)
	n := copy(key, secret)
	for i := n; i < KeySize; i++ {
		key[i] = byte(pad)
	}
	return key, nil
}

// NormalizeKey is LegacyKey with zero-byte padding.
func NormalizeKey(secret string) ([]byte, error) {
	key, err := LegacyKey(secret, PadZero)
	if err != nil {
		return nil, fmt.Errorf("normalizing key: %w", err)
	}
	return key, nil
}
