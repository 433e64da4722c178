package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists a chain's events, checkpoints, and init metadata to a
// SQLite database. Adapted from witnessd/internal/store.Store: the same
// open/insert/scan shape, trimmed from witnessd's MMR-indexed,
// multi-device event table down to a single linear sequence and
// generalized checkpoint table matching this chain's model.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetChainMeta persists the chain's fingerprint binding and genesis
// hash. Called once, at initialize.
func (s *Store) SetChainMeta(m ChainMeta) error {
	_, err := s.db.Exec(`
		INSERT INTO chain_meta (id, fingerprint, initial_hash, start_time)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET fingerprint=excluded.fingerprint,
			initial_hash=excluded.initial_hash, start_time=excluded.start_time`,
		m.Fingerprint, m.InitialHash, m.StartTime)
	if err != nil {
		return fmt.Errorf("store: set chain meta: %w", err)
	}
	return nil
}

// GetChainMeta retrieves the chain's init metadata, or nil if the chain
// has never been initialized.
func (s *Store) GetChainMeta() (*ChainMeta, error) {
	var m ChainMeta
	err := s.db.QueryRow(`SELECT fingerprint, initial_hash, start_time FROM chain_meta WHERE id = 1`).
		Scan(&m.Fingerprint, &m.InitialHash, &m.StartTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get chain meta: %w", err)
	}
	return &m, nil
}

// InsertEvent appends one event row. Sequence is the primary key, so a
// duplicate insert (retried after a crash) fails loudly rather than
// silently double-appending.
func (s *Store) InsertEvent(e EventRow) error {
	_, err := s.db.Exec(`
		INSERT INTO events (
			sequence, timestamp, type, input_type, data_json,
			range_offset, range_length, range_json, previous_hash,
			posw_iterations, posw_nonce, posw_intermediate_hash, posw_compute_time_ms, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Sequence, e.Timestamp, e.Type, e.InputType, e.DataJSON,
		e.RangeOffset, e.RangeLength, e.RangeJSON, e.PreviousHash,
		e.PoSWIterations, e.PoSWNonce, e.PoSWIntermediateHash, e.PoSWComputeTimeMs, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// GetEvents returns every persisted event in sequence order.
func (s *Store) GetEvents() ([]EventRow, error) {
	rows, err := s.db.Query(`
		SELECT sequence, timestamp, type, input_type, data_json,
			range_offset, range_length, range_json, previous_hash,
			posw_iterations, posw_nonce, posw_intermediate_hash, posw_compute_time_ms, hash
		FROM events ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.Timestamp, &e.Type, &e.InputType, &e.DataJSON,
			&e.RangeOffset, &e.RangeLength, &e.RangeJSON, &e.PreviousHash,
			&e.PoSWIterations, &e.PoSWNonce, &e.PoSWIntermediateHash, &e.PoSWComputeTimeMs, &e.Hash,
		); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate events: %w", err)
	}
	return events, nil
}

// EventCount returns the number of persisted events without loading them.
func (s *Store) EventCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}

// InsertCheckpoint appends one checkpoint row.
func (s *Store) InsertCheckpoint(c CheckpointRow) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (sequence, hash, timestamp, content_hash, signature)
		VALUES (?, ?, ?, ?, ?)`,
		c.Sequence, c.Hash, c.Timestamp, c.ContentHash, c.Signature,
	)
	if err != nil {
		return fmt.Errorf("store: insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoints returns every persisted checkpoint in sequence order.
func (s *Store) GetCheckpoints() ([]CheckpointRow, error) {
	rows, err := s.db.Query(`
		SELECT sequence, hash, timestamp, content_hash, signature
		FROM checkpoints ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointRow
	for rows.Next() {
		var c CheckpointRow
		if err := rows.Scan(&c.Sequence, &c.Hash, &c.Timestamp, &c.ContentHash, &c.Signature); err != nil {
			return nil, fmt.Errorf("store: scan checkpoint: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate checkpoints: %w", err)
	}
	return out, nil
}
