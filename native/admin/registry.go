package admin

import (
	"errors"
	"fmt"
	"strings"
)

var ErrOwnerOnly = errors.New("admin: owner only")

// Storage abstracts the key-value state access required by the registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var pausesKey = []byte("system/pauses")

// Registry implements the owner and pause gates consumed by the distribution
// engine. The owner identity is fixed at construction; pause toggles persist
// in state.
type Registry struct {
	store Storage
	owner [20]byte
}

// NewRegistry constructs a registry with the configured owner.
func NewRegistry(store Storage, owner [20]byte) (*Registry, error) {
	if owner == ([20]byte{}) {
		return nil, errors.New("admin: owner address required")
	}
	return &Registry{store: store, owner: owner}, nil
}

// IsOwner reports whether the caller is the configured administrator.
func (r *Registry) IsOwner(addr [20]byte) bool {
	if r == nil {
		return false
	}
	return addr == r.owner
}

// IsPaused reports whether the named module is administratively paused.
// Lookup failures read as not paused; pausing is an operator convenience, not
// a safety invariant.
func (r *Registry) IsPaused(module string) bool {
	if r == nil || r.store == nil {
		return false
	}
	var paused []string
	ok, err := r.store.KVGet(pausesKey, &paused)
	if err != nil || !ok {
		return false
	}
	for _, name := range paused {
		if strings.EqualFold(strings.TrimSpace(name), module) {
			return true
		}
	}
	return false
}

// SetPaused toggles the pause switch for the named module. Owner only.
func (r *Registry) SetPaused(caller [20]byte, module string, paused bool) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("admin: registry not initialised")
	}
	if !r.IsOwner(caller) {
		return ErrOwnerOnly
	}
	name := strings.ToLower(strings.TrimSpace(module))
	if name == "" {
		return fmt.Errorf("admin: module name required")
	}
	var current []string
	if _, err := r.store.KVGet(pausesKey, &current); err != nil {
		return err
	}
	next := make([]string, 0, len(current)+1)
	for _, entry := range current {
		if strings.EqualFold(strings.TrimSpace(entry), name) {
			continue
		}
		next = append(next, entry)
	}
	if paused {
		next = append(next, name)
	}
	return r.store.KVPut(pausesKey, next)
}
