package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mistral-chat/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertAccount inserts an account or updates its profile fields.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acct model.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if acct.StatusID == "" {
		acct.StatusID = model.StatusOffline
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, status_id, status_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			status_id = excluded.status_id,
			status_message = excluded.status_message,
			updated_at = excluded.updated_at`,
		acct.ID, acct.Username, acct.StatusID, acct.StatusMessage, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", acct.ID, err)
	}
	return nil
}

const accountColumns = "id, username, status_id, status_message, created_at, updated_at"

// GetAccount retrieves a single account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var acct model.Account
	err := s.db.GetContext(ctx, &acct, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting account %s: %w", id, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &acct, nil
}

// GetAccounts retrieves all accounts ordered by username.
func (s *SQLiteStore) GetAccounts(ctx context.Context) ([]model.Account, error) {
	var accts []model.Account
	err := s.db.SelectContext(ctx, &accts, "SELECT "+accountColumns+" FROM accounts ORDER BY username, id")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return accts, nil
}

// SetAccountStatus updates an account's presence.
func (s *SQLiteStore) SetAccountStatus(ctx context.Context, id, statusID, statusMessage string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET status_id = ?, status_message = ?, updated_at = ? WHERE id = ?",
		statusID, statusMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting status for account %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("setting status for account %s: %w", id, ErrAccountNotFound)
	}
	return nil
}

// DeleteAccount removes an account and, by cascade, its buddies and lines.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	return nil
}

// UpsertBuddy inserts or replaces a buddy list entry.
func (s *SQLiteStore) UpsertBuddy(ctx context.Context, b model.Buddy) error {
	if b.StatusID == "" {
		b.StatusID = model.StatusOffline
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO buddies (account_id, name, alias, status_id, icon, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.AccountID, b.Name, b.Alias, b.StatusID, b.Icon, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting buddy %s: %w", b.Name, err)
	}
	return nil
}

// GetBuddies retrieves an account's buddy list ordered by alias.
func (s *SQLiteStore) GetBuddies(ctx context.Context, accountID string) ([]model.Buddy, error) {
	var buddies []model.Buddy
	err := s.db.SelectContext(ctx, &buddies, `
		SELECT account_id, name, alias, status_id, icon, updated_at
		FROM buddies WHERE account_id = ?
		ORDER BY COALESCE(NULLIF(alias, ''), name)`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying buddies for %s: %w", accountID, err)
	}
	return buddies, nil
}

// SetBuddyStatus updates one buddy's presence.
func (s *SQLiteStore) SetBuddyStatus(ctx context.Context, accountID, name, statusID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE buddies SET status_id = ?, updated_at = ? WHERE account_id = ? AND name = ?",
		statusID, time.Now().UTC(), accountID, name,
	)
	if err != nil {
		return fmt.Errorf("setting status for buddy %s: %w", name, err)
	}
	return nil
}

// AppendLine adds a line to the end of its conversation.
func (s *SQLiteStore) AppendLine(ctx context.Context, line model.ConversationLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	if line.Timestamp.IsZero() {
		line.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_lines (
			id, account_id, buddy, sender, direction, text, is_error, timestamp, seq
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_lines WHERE account_id = ? AND buddy = ?)
		)`,
		line.ID, line.AccountID, line.Buddy, line.Sender, line.Direction,
		line.Text, boolToInt(line.IsError), line.Timestamp.UTC(),
		line.AccountID, line.Buddy,
	)
	if err != nil {
		return fmt.Errorf("appending line to %s/%s: %w", line.AccountID, line.Buddy, err)
	}
	return nil
}

// GetLines returns a conversation's lines in the order they were appended.
func (s *SQLiteStore) GetLines(ctx context.Context, f LineFilter) ([]model.ConversationLine, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}

	var lines []model.ConversationLine
	err := s.db.SelectContext(ctx, &lines, `
		SELECT id, account_id, buddy, sender, direction, text, is_error, timestamp FROM (
			SELECT * FROM conversation_lines
			WHERE account_id = ? AND buddy = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC`,
		f.AccountID, f.Buddy, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying lines for %s/%s: %w", f.AccountID, f.Buddy, err)
	}
	return lines, nil
}

// ClearLines removes a conversation's transcript.
func (s *SQLiteStore) ClearLines(ctx context.Context, accountID, buddy string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM conversation_lines WHERE account_id = ? AND buddy = ?",
		accountID, buddy,
	)
	if err != nil {
		return fmt.Errorf("clearing lines for %s/%s: %w", accountID, buddy, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
