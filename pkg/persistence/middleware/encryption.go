package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
)

// envelopeSource marks a recording whose value is an encrypted recording.
const envelopeSource = "__encrypted__"

// ErrNotEncrypted is returned when a stored recording is not an envelope.
var ErrNotEncrypted = errors.New("recording is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SlurpCache
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts slurp
// recordings with AES-GCM before they reach a shared cache. Slurped values
// are often session tokens or keys of the target.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	return func(next ports.SlurpCache) ports.SlurpCache {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Store(ctx context.Context, key string, rec domain.SlurpRecording) error {
	plainText, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt recording: %w", err)
	}

	// Source and sinks are hidden along with the value.
	envelope := domain.SlurpRecording{
		Source: envelopeSource,
		Value:  model.Bytes(ciphertext),
	}
	return m.next.Store(ctx, key, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) (domain.SlurpRecording, bool, error) {
	envelope, ok, err := m.next.Load(ctx, key)
	if err != nil || !ok {
		return domain.SlurpRecording{}, ok, err
	}
	if envelope.Source != envelopeSource {
		return domain.SlurpRecording{}, false, ErrNotEncrypted
	}

	plainText, err := decryptWithRotation(envelope.Value.AsBytes(), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.SlurpRecording{}, false, fmt.Errorf("failed to decrypt recording: %w", err)
	}

	var rec domain.SlurpRecording
	if err := json.Unmarshal(plainText, &rec); err != nil {
		return domain.SlurpRecording{}, false, fmt.Errorf("failed to unmarshal decrypted recording: %w", err)
	}
	return rec, true, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
