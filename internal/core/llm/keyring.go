package llm

import (
	"errors"
	"sync"
)

// ErrEmptyKeyring is returned when no provider credentials are configured.
var ErrEmptyKeyring = errors.New("no API keys in keyring")

// Keyring holds an ordered pool of provider API keys and a shared cursor.
// Rotation is reactive: callers rotate only after an operation using the
// current key failed. With a single key rotation is a no-op. The generation
// counter lets client caches detect that the active key changed without
// comparing key material.
type Keyring struct {
	mu         sync.Mutex
	keys       []string
	cursor     int
	generation uint64
}

func NewKeyring(keys []string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeyring
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Keyring{keys: cp}, nil
}

// Current returns the active key and the generation it belongs to.
func (k *Keyring) Current() (string, uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys[k.cursor], k.generation
}

// Rotate advances the cursor modulo the pool size and bumps the generation.
// It returns the newly active key.
func (k *Keyring) Rotate() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cursor = (k.cursor + 1) % len(k.keys)
	k.generation++
	return k.keys[k.cursor]
}

// Size reports the pool size.
func (k *Keyring) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
