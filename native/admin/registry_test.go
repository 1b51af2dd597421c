package admin

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type mockStorage struct {
	kv map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{kv: make(map[string][]byte)}
}

func (m *mockStorage) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockStorage) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func newTestRegistry(t *testing.T) (*Registry, [20]byte) {
	t.Helper()
	var owner [20]byte
	owner[0] = 0x02
	registry, err := NewRegistry(newMockStorage(), owner)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry, owner
}

func TestRegistryRequiresOwner(t *testing.T) {
	if _, err := NewRegistry(newMockStorage(), [20]byte{}); err == nil {
		t.Fatal("expected zero owner to be rejected")
	}
}

func TestIsOwner(t *testing.T) {
	registry, owner := newTestRegistry(t)
	if !registry.IsOwner(owner) {
		t.Fatal("configured owner not recognised")
	}
	var stranger [20]byte
	stranger[0] = 0xee
	if registry.IsOwner(stranger) {
		t.Fatal("stranger recognised as owner")
	}
}

func TestPauseToggle(t *testing.T) {
	registry, owner := newTestRegistry(t)
	if registry.IsPaused("distribution") {
		t.Fatal("module paused before any toggle")
	}
	if err := registry.SetPaused(owner, "distribution", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !registry.IsPaused("distribution") {
		t.Fatal("module not paused after toggle")
	}
	if registry.IsPaused("bank") {
		t.Fatal("unrelated module paused")
	}
	if err := registry.SetPaused(owner, "distribution", false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if registry.IsPaused("distribution") {
		t.Fatal("module still paused after unpause")
	}
}

func TestPauseNameNormalisation(t *testing.T) {
	registry, owner := newTestRegistry(t)
	if err := registry.SetPaused(owner, "  Distribution ", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !registry.IsPaused("distribution") {
		t.Fatal("normalised module name not matched")
	}
}

func TestSetPausedOwnerOnly(t *testing.T) {
	registry, _ := newTestRegistry(t)
	var stranger [20]byte
	stranger[0] = 0xee
	if err := registry.SetPaused(stranger, "distribution", true); !errors.Is(err, ErrOwnerOnly) {
		t.Fatalf("expected ErrOwnerOnly, got %v", err)
	}
	if registry.IsPaused("distribution") {
		t.Fatal("pause applied despite rejection")
	}
}

func TestSetPausedRejectsEmptyModule(t *testing.T) {
	registry, owner := newTestRegistry(t)
	if err := registry.SetPaused(owner, "   ", true); err == nil {
		t.Fatal("expected empty module name to be rejected")
	}
}
