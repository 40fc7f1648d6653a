package testutil

import (
	"context"
	"testing"

	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAccount inserts an account with the given id and username.
func SeedAccount(t *testing.T, s store.Store, id, username string) model.Account {
	t.Helper()

	acct := model.Account{ID: id, Username: username, StatusID: model.StatusAvailable}
	if err := s.UpsertAccount(context.Background(), acct); err != nil {
		t.Fatalf("seeding account %s: %v", id, err)
	}
	return acct
}
