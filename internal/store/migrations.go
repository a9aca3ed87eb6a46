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

CREATE TABLE IF NOT EXISTS queued_requests (
	id          TEXT PRIMARY KEY,
	tag         TEXT NOT NULL,
	url         TEXT NOT NULL,
	method      TEXT NOT NULL,
	headers     TEXT NOT NULL DEFAULT '{}',
	body        TEXT NOT NULL DEFAULT '',
	enqueued_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id        TEXT PRIMARY KEY,
	user_id   INTEGER NOT NULL DEFAULT 0,
	title     TEXT NOT NULL,
	body      TEXT NOT NULL DEFAULT '',
	icon      TEXT NOT NULL DEFAULT '',
	url       TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL,
	read      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS read_receipts (
	notification_id TEXT PRIMARY KEY,
	timestamp       DATETIME NOT NULL,
	read            INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS push_subscriptions (
	endpoint   TEXT PRIMARY KEY,
	p256dh_key TEXT NOT NULL DEFAULT '',
	auth_key   TEXT NOT NULL DEFAULT '',
	user_id    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queued_requests_tag ON queued_requests(tag, enqueued_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE queued_requests ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
