package credential

import (
	"errors"
	"testing"
)

func TestMemoryVaultRoundTrip(t *testing.T) {
	v := NewMemoryVault()
	key := APIKeyName("acct-1")

	if _, err := v.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty vault: got %v, want ErrNotFound", err)
	}

	if err := v.Set(key, "sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := v.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "sk-test" {
		t.Errorf("Get = %q, want %q", got, "sk-test")
	}

	if err := v.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := v.Delete(key); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := v.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func TestAPIKeyNameIsPerAccount(t *testing.T) {
	if APIKeyName("a") == APIKeyName("b") {
		t.Fatal("distinct accounts must map to distinct keys")
	}
}
