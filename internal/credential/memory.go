package credential

import (
	"fmt"
	"sync"
)

// MemoryVault is an in-process Vault, used by tests and the headless
// command when the key comes from the environment.
type MemoryVault struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{items: make(map[string]string)}
}

func (v *MemoryVault) Get(key string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.items[key]
	if !ok {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	return val, nil
}

func (v *MemoryVault) Set(key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items[key] = value
	return nil
}

func (v *MemoryVault) Delete(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.items, key)
	return nil
}
