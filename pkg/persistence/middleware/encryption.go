package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
)

const envelopeKey = "__encrypted__"

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
	next ports.CheckpointStore
	// aeads holds the active key first, then the fallbacks in order.
	aeads []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that seals checkpoints with
// AES-GCM. The stored envelope keeps the identifying fields (ID, run, program,
// seed, steps, creation time) in clear so stores can list and expire it; the
// choices, payload, error and machine records are only in the ciphertext.
// It panics if a key is not 32 bytes long.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	aeads := make([]cipher.AEAD, 0, 1+len(config.FallbackKeys))
	for _, key := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		aead, err := newAEAD(key)
		if err != nil {
			panic(fmt.Sprintf("invalid encryption key: %v", err))
		}
		aeads = append(aeads, aead)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &encryptionMiddleware{next: next, aeads: aeads}
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (m *encryptionMiddleware) Save(ctx context.Context, cp *domain.Checkpoint) error {
	plainText, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	ciphertext, err := m.seal(plainText)
	if err != nil {
		return fmt.Errorf("failed to encrypt checkpoint: %w", err)
	}

	envelope := &domain.Checkpoint{
		ID:        cp.ID,
		RunID:     cp.RunID,
		Program:   cp.Program,
		Seed:      cp.Seed,
		Steps:     cp.Steps,
		CreatedAt: cp.CreatedAt,
		Payload: map[string]any{
			envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
		},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	// fail secure: a store wrapped for encryption only holds envelopes
	fields, _ := envelope.Payload.(map[string]any)
	encryptedStr, ok := fields[envelopeKey].(string)
	if !ok {
		return nil, errors.New("checkpoint is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.open(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt checkpoint: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(plainText, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted checkpoint: %w", err)
	}
	return &cp, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// seal encrypts with the active key and prefixes the random nonce.
func (m *encryptionMiddleware) seal(plaintext []byte) ([]byte, error) {
	aead := m.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open tries the active key, then each fallback key.
func (m *encryptionMiddleware) open(ciphertext []byte) ([]byte, error) {
	for _, aead := range m.aeads {
		if len(ciphertext) < aead.NonceSize() {
			return nil, errors.New("ciphertext too short")
		}
		nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
		if plain, err := aead.Open(nil, nonce, sealed, nil); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
