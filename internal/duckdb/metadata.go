package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ExportStamp records which cache root an inventory was taken from and when.
type ExportStamp struct {
	Root    string
	Entries int64
	Written time.Time
}

func (s *Store) ensureMetaSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS inventory_meta (
		root VARCHAR,
		entries BIGINT,
		written TIMESTAMP
	)`)
	return err
}

// WriteStamp replaces the export stamp.
func (s *Store) WriteStamp(st ExportStamp) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM inventory_meta"); err != nil {
		return fmt.Errorf("clear stamp: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO inventory_meta VALUES (?, ?, ?)",
		st.Root, st.Entries, st.Written.UTC()); err != nil {
		return fmt.Errorf("insert stamp: %w", err)
	}
	return tx.Commit()
}

// Stamp returns the current export stamp. ok is false if no inventory has
// been written yet.
func (s *Store) Stamp() (st ExportStamp, ok bool, err error) {
	err = s.db.QueryRow("SELECT root, entries, written FROM inventory_meta LIMIT 1").
		Scan(&st.Root, &st.Entries, &st.Written)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportStamp{}, false, nil
	}
	if err != nil {
		return ExportStamp{}, false, fmt.Errorf("read stamp: %w", err)
	}
	return st, true, nil
}
