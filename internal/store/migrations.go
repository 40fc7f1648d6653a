package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL DEFAULT '',
	status_id      TEXT NOT NULL DEFAULT 'offline',
	status_message TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS buddies (
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	alias      TEXT NOT NULL DEFAULT '',
	status_id  TEXT NOT NULL DEFAULT 'offline',
	icon       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, name)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS conversation_lines (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	buddy      TEXT NOT NULL,
	sender     TEXT NOT NULL,
	direction  TEXT NOT NULL CHECK (direction IN ('in', 'out')),
	text       TEXT NOT NULL,
	is_error   INTEGER NOT NULL DEFAULT 0,
	timestamp  DATETIME NOT NULL,
	seq        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_conversation ON conversation_lines(account_id, buddy, seq);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
