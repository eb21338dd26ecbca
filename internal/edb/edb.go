// Package edb is the engineering-telemetry store behind the portal's
// mnemonic browser. Mnemonic metadata and their time-ordered samples live
// in SQLite; queries return sample series with summary statistics.
package edb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a mnemonic identifier is unknown.
var ErrNotFound = errors.New("edb: mnemonic not found")

// Mnemonic describes one telemetry channel.
type Mnemonic struct {
	Identifier  string
	Subsystem   string
	Description string
	Unit        string
	DataType    string
}

// Sample is a single telemetry reading.
type Sample struct {
	Time  time.Time
	Value float64
}

// Stats summarises a sample series. Count zero means the range held no
// samples; the remaining fields are zero in that case.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Series is the result of a time-range query.
type Series struct {
	Mnemonic Mnemonic
	Start    time.Time
	End      time.Time
	Samples  []Sample
	Stats    Stats
}

// Store wraps the engineering database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the engineering database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("edb: open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mnemonics (
		identifier TEXT PRIMARY KEY,
		subsystem TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		data_type TEXT NOT NULL DEFAULT 'float'
	);
	CREATE TABLE IF NOT EXISTS samples (
		mnemonic TEXT NOT NULL REFERENCES mnemonics(identifier),
		obs_time DATETIME NOT NULL,
		value REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_mnemonic_time ON samples(mnemonic, obs_time);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("edb: init schema: %w", err)
	}
	return nil
}

// AddMnemonic registers a telemetry channel.
func (s *Store) AddMnemonic(ctx context.Context, m Mnemonic) error {
	if m.Identifier == "" {
		return fmt.Errorf("edb: add mnemonic: identifier is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO mnemonics (identifier, subsystem, description, unit, data_type)
		VALUES (?, ?, ?, ?, ?)`,
		m.Identifier, m.Subsystem, m.Description, m.Unit, m.DataType)
	if err != nil {
		return fmt.Errorf("edb: add mnemonic %s: %w", m.Identifier, err)
	}
	return nil
}

// AddSamples appends readings for a mnemonic.
func (s *Store) AddSamples(ctx context.Context, identifier string, samples []Sample) error {
	if _, err := s.mnemonic(ctx, identifier); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("edb: begin: %w", err)
	}
	for _, sample := range samples {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO samples (mnemonic, obs_time, value) VALUES (?, ?, ?)",
			identifier, sample.Time.UTC(), sample.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("edb: add sample for %s: %w", identifier, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("edb: commit samples: %w", err)
	}
	return nil
}

// Search returns mnemonics whose identifier or description contains term,
// case-insensitively, sorted by identifier.
func (s *Store) Search(ctx context.Context, term string) ([]Mnemonic, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, subsystem, description, unit, data_type
		FROM mnemonics
		WHERE lower(identifier) LIKE ? OR lower(description) LIKE ?
		ORDER BY identifier`,
		pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("edb: search: %w", err)
	}
	defer rows.Close()

	var out []Mnemonic
	for rows.Next() {
		var m Mnemonic
		if err := rows.Scan(&m.Identifier, &m.Subsystem, &m.Description, &m.Unit, &m.DataType); err != nil {
			return nil, fmt.Errorf("edb: scan mnemonic: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("edb: iterate mnemonics: %w", err)
	}
	return out, nil
}

func (s *Store) mnemonic(ctx context.Context, identifier string) (Mnemonic, error) {
	var m Mnemonic
	err := s.db.QueryRowContext(ctx, `
		SELECT identifier, subsystem, description, unit, data_type
		FROM mnemonics WHERE identifier = ?`,
		identifier).Scan(&m.Identifier, &m.Subsystem, &m.Description, &m.Unit, &m.DataType)
	if errors.Is(err, sql.ErrNoRows) {
		return Mnemonic{}, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	if err != nil {
		return Mnemonic{}, fmt.Errorf("edb: lookup %s: %w", identifier, err)
	}
	return m, nil
}

// QueryRange returns the ordered samples for a mnemonic between start and
// end (inclusive) together with summary statistics. A zero end time means
// open-ended. An empty range is not an error; it yields stats with count
// zero.
func (s *Store) QueryRange(ctx context.Context, identifier string, start, end time.Time) (Series, error) {
	m, err := s.mnemonic(ctx, identifier)
	if err != nil {
		return Series{}, err
	}

	if end.IsZero() {
		end = farFuture()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT obs_time, value FROM samples
		WHERE mnemonic = ? AND obs_time >= ? AND obs_time <= ?
		ORDER BY obs_time`,
		identifier, start.UTC(), end.UTC())
	if err != nil {
		return Series{}, fmt.Errorf("edb: query %s: %w", identifier, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.Time, &sample.Value); err != nil {
			return Series{}, fmt.Errorf("edb: scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return Series{}, fmt.Errorf("edb: iterate samples: %w", err)
	}

	return Series{
		Mnemonic: m,
		Start:    start,
		End:      end,
		Samples:  samples,
		Stats:    computeStats(samples),
	}, nil
}

func computeStats(samples []Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}

	stats := Stats{
		Count: len(samples),
		Min:   samples[0].Value,
		Max:   samples[0].Value,
	}

	var sum float64
	for _, sample := range samples {
		sum += sample.Value
		if sample.Value < stats.Min {
			stats.Min = sample.Value
		}
		if sample.Value > stats.Max {
			stats.Max = sample.Value
		}
	}
	stats.Mean = sum / float64(len(samples))

	var sq float64
	for _, sample := range samples {
		d := sample.Value - stats.Mean
		sq += d * d
	}
	stats.StdDev = math.Sqrt(sq / float64(len(samples)))
	return stats
}
