package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "mistral-chat"

// ErrNotFound is returned when no credential exists for a key.
var ErrNotFound = errors.New("credential not found")

// Vault stores secrets by key.
type Vault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// APIKeyName returns the vault key holding an account's API key.
func APIKeyName(accountID string) string {
	return "mistral-api-key:" + accountID
}

// KeyringVault is a Vault backed by the operating system keyring.
type KeyringVault struct {
	fileDir string

	once sync.Once
	ring keyring.Keyring
	err  error
}

// NewKeyringVault returns a vault whose file backend, when used, lives
// under configDir/credentials. The keyring is opened lazily.
func NewKeyringVault(configDir string) *KeyringVault {
	return &KeyringVault{fileDir: filepath.Join(configDir, "credentials")}
}

// open returns a configured keyring instance.
func (v *KeyringVault) open() (keyring.Keyring, error) {
	v.once.Do(func() {
		ring, err := keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  v.fileDir,
			FilePasswordFunc:         keyring.FixedStringPrompt("mistral-chat-file-key"),
			KeychainTrustApplication: true,
		})
		if err != nil {
			v.err = fmt.Errorf("opening keyring: %w", err)
			return
		}
		v.ring = ring
	})
	return v.ring, v.err
}

// Get retrieves a credential value by key from the system keyring.
func (v *KeyringVault) Get(key string) (string, error) {
	ring, err := v.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func (v *KeyringVault) Set(key, value string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "Mistral AI API key",
		Description: "mistral-chat",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
// Deleting a missing key is not an error.
func (v *KeyringVault) Delete(key string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
