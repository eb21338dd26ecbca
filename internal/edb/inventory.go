package edb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// exploreConcurrency bounds the per-mnemonic statistic queries run by
// Explore.
const exploreConcurrency = 4

// SubsystemCount pairs a subsystem with its mnemonic count.
type SubsystemCount struct {
	Subsystem string
	Count     int
}

// Inventory returns per-subsystem mnemonic counts, sorted by subsystem.
func (s *Store) Inventory(ctx context.Context) ([]SubsystemCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subsystem, COUNT(*) FROM mnemonics
		GROUP BY subsystem ORDER BY subsystem`)
	if err != nil {
		return nil, fmt.Errorf("edb: inventory: %w", err)
	}
	defer rows.Close()

	var out []SubsystemCount
	for rows.Next() {
		var entry SubsystemCount
		if err := rows.Scan(&entry.Subsystem, &entry.Count); err != nil {
			return nil, fmt.Errorf("edb: scan inventory: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("edb: iterate inventory: %w", err)
	}
	return out, nil
}

// ExploreResult is the all-time statistics for one mnemonic.
type ExploreResult struct {
	Mnemonic Mnemonic
	Stats    Stats
}

// Explore computes sample statistics for every mnemonic matching filter
// (substring over identifier and description; empty matches all). The
// per-mnemonic queries run concurrently with a fixed bound.
func (s *Store) Explore(ctx context.Context, filter string) ([]ExploreResult, error) {
	mnemonics, err := s.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(mnemonics) == 0 {
		return nil, nil
	}

	results := make([]ExploreResult, len(mnemonics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exploreConcurrency)
	for i, m := range mnemonics {
		g.Go(func() error {
			series, err := s.QueryRange(gctx, m.Identifier, time.Time{}, farFuture())
			if err != nil {
				return err
			}
			results[i] = ExploreResult{Mnemonic: m, Stats: series.Stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("edb: explore: %w", err)
	}
	return results, nil
}

func farFuture() time.Time {
	return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
}

// SubsystemFor guesses the subsystem prefix of a mnemonic identifier,
// e.g. "SA_ZFGOUTFOV" reports "SA". Unprefixed identifiers report "".
func SubsystemFor(identifier string) string {
	if i := strings.Index(identifier, "_"); i > 0 {
		return identifier[:i]
	}
	return ""
}
