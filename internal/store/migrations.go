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

CREATE TABLE IF NOT EXISTS processed_messages (
	folder     TEXT NOT NULL,
	message_id TEXT NOT NULL,
	replied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (folder, message_id)
);

CREATE INDEX IF NOT EXISTS idx_processed_folder ON processed_messages(folder);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
