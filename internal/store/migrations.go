package store

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration, kept even at one
// version so a second schema change has somewhere to land.
type Migration struct {
	Version     int
	Description string
	Up          string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "events, checkpoints, and chain_meta tables",
		Up:          migrationV1Up,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS chain_meta (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    fingerprint     TEXT NOT NULL,
    initial_hash    TEXT NOT NULL,
    start_time      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    sequence                INTEGER PRIMARY KEY,
    timestamp               INTEGER NOT NULL,
    type                    TEXT NOT NULL,
    input_type              TEXT,
    data_json               TEXT,
    range_offset            INTEGER,
    range_length            INTEGER,
    range_json              TEXT,
    previous_hash           TEXT NOT NULL,
    posw_iterations         INTEGER NOT NULL,
    posw_nonce              TEXT NOT NULL,
    posw_intermediate_hash  TEXT NOT NULL,
    posw_compute_time_ms    INTEGER NOT NULL,
    hash                    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);

CREATE TABLE IF NOT EXISTS checkpoints (
    sequence        INTEGER PRIMARY KEY,
    hash            TEXT NOT NULL,
    timestamp       INTEGER NOT NULL,
    content_hash    TEXT,
    signature       TEXT
);
`

// MigrateDB applies every migration newer than the database's current
// schema_version, in order, inside one transaction per migration.
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear schema_version: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record schema_version %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}
