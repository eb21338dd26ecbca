// Package archive is the SQLite-backed observation store behind the query
// and exploration pages. It mirrors the portal's REST surface: proposal
// listings, filename lookups with abbreviated-rootname prefix matching, and
// preview/thumbnail resolution.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a rootname or proposal has no rows.
var ErrNotFound = errors.New("archive: not found")

// ErrInvalidSpec wraps query validation failures surfaced before any SQL is
// built.
var ErrInvalidSpec = errors.New("archive: invalid query")

// Observation is one exposure-level row in the archive.
type Observation struct {
	Rootname      string
	Instrument    string
	Proposal      string
	ObsStart      time.Time
	ObsEnd        time.Time
	Detector      string
	Aperture      string
	Filter        string
	Pupil         string
	ExpType       string
	ReadPattern   string
	Subarray      string
	Anomalies     []string
	PreviewPath   string
	ThumbnailPath string
}

// Store wraps the observations database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
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
	CREATE TABLE IF NOT EXISTS observations (
		rootname TEXT PRIMARY KEY,
		instrument TEXT NOT NULL,
		proposal TEXT NOT NULL,
		obs_start DATETIME NOT NULL,
		obs_end DATETIME NOT NULL,
		detector TEXT NOT NULL DEFAULT '',
		aperture TEXT NOT NULL DEFAULT '',
		filter TEXT NOT NULL DEFAULT '',
		pupil TEXT NOT NULL DEFAULT '',
		exp_type TEXT NOT NULL DEFAULT '',
		read_patt TEXT NOT NULL DEFAULT '',
		subarray TEXT NOT NULL DEFAULT '',
		anomalies TEXT NOT NULL DEFAULT '',
		preview_path TEXT NOT NULL DEFAULT '',
		thumbnail_path TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_observations_instrument ON observations(instrument);
	CREATE INDEX IF NOT EXISTS idx_observations_proposal ON observations(proposal);
	CREATE INDEX IF NOT EXISTS idx_observations_obs_start ON observations(obs_start);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("archive: init schema: %w", err)
	}
	return nil
}

// Insert adds or replaces an observation row.
func (s *Store) Insert(ctx context.Context, obs Observation) error {
	if obs.Rootname == "" {
		return fmt.Errorf("archive: insert: rootname is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO observations (
			rootname, instrument, proposal, obs_start, obs_end,
			detector, aperture, filter, pupil, exp_type, read_patt,
			subarray, anomalies, preview_path, thumbnail_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.Rootname, obs.Instrument, obs.Proposal,
		obs.ObsStart.UTC(), obs.ObsEnd.UTC(),
		obs.Detector, obs.Aperture, obs.Filter, obs.Pupil,
		obs.ExpType, obs.ReadPattern, obs.Subarray,
		strings.Join(obs.Anomalies, ","),
		obs.PreviewPath, obs.ThumbnailPath,
	)
	if err != nil {
		return fmt.Errorf("archive: insert %s: %w", obs.Rootname, err)
	}
	return nil
}

const observationColumns = `rootname, instrument, proposal, obs_start, obs_end,
	detector, aperture, filter, pupil, exp_type, read_patt, subarray,
	anomalies, preview_path, thumbnail_path`

func scanObservation(scanner interface{ Scan(...any) error }) (Observation, error) {
	var obs Observation
	var anomalies string
	err := scanner.Scan(
		&obs.Rootname, &obs.Instrument, &obs.Proposal,
		&obs.ObsStart, &obs.ObsEnd,
		&obs.Detector, &obs.Aperture, &obs.Filter, &obs.Pupil,
		&obs.ExpType, &obs.ReadPattern, &obs.Subarray,
		&anomalies, &obs.PreviewPath, &obs.ThumbnailPath,
	)
	if err != nil {
		return Observation{}, err
	}
	if anomalies != "" {
		obs.Anomalies = strings.Split(anomalies, ",")
	}
	return obs, nil
}

func collectObservations(rows *sql.Rows) ([]Observation, error) {
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate rows: %w", err)
	}
	return out, nil
}
