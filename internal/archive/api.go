package archive

import (
	"context"
	"fmt"
)

// Proposals lists every proposal number in the archive, sorted.
func (s *Store) Proposals(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx,
		"SELECT DISTINCT proposal FROM observations ORDER BY proposal")
}

// InstrumentProposals lists the proposals that include observations from
// the given instrument.
func (s *Store) InstrumentProposals(ctx context.Context, instrument string) ([]string, error) {
	return s.stringColumn(ctx,
		"SELECT DISTINCT proposal FROM observations WHERE instrument = ? ORDER BY proposal",
		instrument)
}

// FilenamesByProposal lists the rootnames filed under a proposal.
func (s *Store) FilenamesByProposal(ctx context.Context, proposal string) ([]string, error) {
	names, err := s.stringColumn(ctx,
		"SELECT rootname FROM observations WHERE proposal = ? ORDER BY rootname",
		proposal)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: proposal %s", ErrNotFound, proposal)
	}
	return names, nil
}

// FilenamesByRootname lists the rootnames matching the given rootname.
// Abbreviated rootnames are allowed: any rootname with the argument as a
// prefix matches, so "jw8660" returns every observation of program 8660.
func (s *Store) FilenamesByRootname(ctx context.Context, rootname string) ([]string, error) {
	names, err := s.stringColumn(ctx,
		"SELECT rootname FROM observations WHERE rootname LIKE ? || '%' ORDER BY rootname",
		rootname)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: rootname %s", ErrNotFound, rootname)
	}
	return names, nil
}

// PreviewImagesByProposal lists preview image paths for a proposal.
func (s *Store) PreviewImagesByProposal(ctx context.Context, proposal string) ([]string, error) {
	return s.stringColumn(ctx,
		"SELECT preview_path FROM observations WHERE proposal = ? AND preview_path != '' ORDER BY rootname",
		proposal)
}

// PreviewImagesByRootname lists preview image paths for a full or
// abbreviated rootname.
func (s *Store) PreviewImagesByRootname(ctx context.Context, rootname string) ([]string, error) {
	return s.stringColumn(ctx,
		"SELECT preview_path FROM observations WHERE rootname LIKE ? || '%' AND preview_path != '' ORDER BY rootname",
		rootname)
}

// ThumbnailsByProposal lists thumbnail paths for a proposal.
func (s *Store) ThumbnailsByProposal(ctx context.Context, proposal string) ([]string, error) {
	return s.stringColumn(ctx,
		"SELECT thumbnail_path FROM observations WHERE proposal = ? AND thumbnail_path != '' ORDER BY rootname",
		proposal)
}

// ThumbnailByRootname resolves the thumbnail for an exact rootname.
func (s *Store) ThumbnailByRootname(ctx context.Context, rootname string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		"SELECT thumbnail_path FROM observations WHERE rootname = ?",
		rootname).Scan(&path)
	if err != nil {
		return "", fmt.Errorf("%w: rootname %s", ErrNotFound, rootname)
	}
	if path == "" {
		return "", fmt.Errorf("%w: no thumbnail for %s", ErrNotFound, rootname)
	}
	return path, nil
}

// ObservationsByRootname fetches full rows for a full or abbreviated
// rootname, ordered by rootname.
func (s *Store) ObservationsByRootname(ctx context.Context, rootname string) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM observations WHERE rootname LIKE ? || '%%' ORDER BY rootname", observationColumns),
		rootname)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	observations, err := collectObservations(rows)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: rootname %s", ErrNotFound, rootname)
	}
	return observations, nil
}

// Observation fetches a single row by exact rootname.
func (s *Store) Observation(ctx context.Context, rootname string) (Observation, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM observations WHERE rootname = ?", observationColumns),
		rootname)
	obs, err := scanObservation(row)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: rootname %s", ErrNotFound, rootname)
	}
	return obs, nil
}

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate: %w", err)
	}
	return out, nil
}
