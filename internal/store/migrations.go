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

CREATE TABLE IF NOT EXISTS noti_records (
	noti_key        TEXT PRIMARY KEY,
	hash_key        INTEGER NOT NULL,
	pkg_name        TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	group_key       TEXT NOT NULL DEFAULT '',
	is_group_chat   INTEGER NOT NULL DEFAULT 0,
	app_name        TEXT NOT NULL DEFAULT '',
	icon            TEXT NOT NULL DEFAULT '',
	large_icon      TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	latest_time     INTEGER NOT NULL DEFAULT 0,
	is_conversation INTEGER NOT NULL DEFAULT 0,
	participants    TEXT NOT NULL DEFAULT '[]',
	current_thread  TEXT NOT NULL DEFAULT '[]',
	history         TEXT NOT NULL DEFAULT '[]',
	whole_read      INTEGER NOT NULL DEFAULT 0,
	score           REAL NOT NULL DEFAULT 100.0,
	summary         TEXT NOT NULL DEFAULT '',
	visible         INTEGER NOT NULL DEFAULT 1,
	pinned          INTEGER NOT NULL DEFAULT 0,
	content_length  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_noti_records_hash_key
	ON noti_records(hash_key);

CREATE INDEX IF NOT EXISTS idx_noti_records_visible
	ON noti_records(visible, whole_read, score, latest_time);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
