package middleware_test

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func checkpoint(id string) *domain.Checkpoint {
	return &domain.Checkpoint{
		ID:      id,
		RunID:   "run-1",
		Program: "Client",
		Seed:    7,
		Steps:   2,
		Payload: map[string]any{"secret": "my-secret-sauce"},
		Choices: []domain.Choice{{Kind: domain.ChoiceSchedule, Value: 1}, {Kind: domain.ChoiceBool, Value: 0}},
		Error:   "machine m: event oops unhandled in state S",
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlyingStore)

	ctx := context.Background()
	if err := secureStore.Save(ctx, checkpoint("cp-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// the underlying store only sees the envelope
	stored, err := underlyingStore.Load(ctx, "cp-1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Error != "" || stored.Choices != nil {
		t.Fatalf("Expected error and choices to be hidden, got %q %v", stored.Error, stored.Choices)
	}
	if _, ok := stored.Payload.(map[string]any)["__encrypted__"]; !ok {
		t.Fatal("Expected __encrypted__ field in payload")
	}
	if stored.Program != "Client" || stored.Seed != 7 {
		t.Errorf("Expected identifying fields in clear, got %q %d", stored.Program, stored.Seed)
	}

	loaded, err := secureStore.Load(ctx, "cp-1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Payload.(map[string]any)["secret"] != "my-secret-sauce" {
		t.Errorf("Expected 'my-secret-sauce', got %v", loaded.Payload)
	}
	if len(loaded.Choices) != 2 || loaded.Choices[0].Value != 1 {
		t.Errorf("Choices not restored: %v", loaded.Choices)
	}

	if _, err := secureStore.Load(ctx, "missing"); !errors.Is(err, domain.ErrCheckpointNotFound) {
		t.Errorf("Expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	if err := secureStoreOld.Save(ctx, checkpoint("rotation")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rotation")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if loaded.Seed != 7 {
		t.Errorf("Decryption with fallback key failed")
	}

	// saving again re-encrypts with the new key
	if err := secureStoreNew.Save(ctx, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}
	if _, err := secureStoreOld.Load(ctx, "rotation"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_PlainCheckpointRejected(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	_ = underlyingStore.Save(ctx, checkpoint("plain"))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.Load(ctx, "plain"); err == nil {
		t.Error("Expected an unencrypted checkpoint to be rejected")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
