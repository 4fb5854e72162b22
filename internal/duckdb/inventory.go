package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/featcache/internal/store"
)

// WriteInventory replaces the inventory with the given file fingerprints,
// batch-inserted with the Appender API.
func (s *Store) WriteInventory(entries []store.FileFingerprint) error {
	if err := s.ClearInventory(); err != nil {
		return fmt.Errorf("clear inventory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "segments")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, e := range entries {
		if err := appender.AppendRow(
			e.Key.Track, e.Key.Organism, e.Key.Build, e.Key.Chromosome,
			e.Interval.Start, e.Interval.End, e.Size, e.ModTime.UTC(),
		); err != nil {
			return fmt.Errorf("append segment %s %s: %w", e.Key, e.Interval, err)
		}
	}

	return appender.Flush()
}

// ClearInventory removes all inventory rows.
func (s *Store) ClearInventory() error {
	_, err := s.db.Exec("DELETE FROM segments")
	return err
}

// KeyCoverage summarizes the stored intervals of one cache key.
type KeyCoverage struct {
	Key       store.Key
	Segments  int64 // stored files
	Positions int64 // positions covered
	Bytes     int64 // total file size
	MinStart  int64
	MaxEnd    int64
}

// Coverage returns one summary row per key, optionally restricted to a track
// (empty track means all), ordered by key.
func (s *Store) Coverage(track string) ([]KeyCoverage, error) {
	rows, err := s.db.Query(`SELECT
		track, organism, build, chrom,
		COUNT(*), CAST(SUM(end_ - start + 1) AS BIGINT), CAST(SUM(size_bytes) AS BIGINT),
		MIN(start), MAX(end_)
		FROM segments
		WHERE ? = '' OR track = ?
		GROUP BY track, organism, build, chrom
		ORDER BY track, organism, build, chrom`, track, track)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	var result []KeyCoverage
	for rows.Next() {
		var c KeyCoverage
		if err := rows.Scan(
			&c.Key.Track, &c.Key.Organism, &c.Key.Build, &c.Key.Chromosome,
			&c.Segments, &c.Positions, &c.Bytes, &c.MinStart, &c.MaxEnd,
		); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coverage: %w", err)
	}
	return result, nil
}

// Count returns the number of inventory rows.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM segments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}
