package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/observatory/quicklook/internal/catalog"
)

// Sort orders supported by Search.
const (
	SortAscending  = "ascending"
	SortDescending = "descending"
	SortRecent     = "recent"
)

// QuerySpec describes an archive search: which instruments to include and,
// per instrument, which option values to require. An instrument with no
// selections matches all of its observations.
type QuerySpec struct {
	Instruments []string

	// Selections maps instrument -> option kind -> accepted values.
	Selections map[string]map[catalog.Kind][]string

	// Start and End bound obs_start. Zero values leave the bound open.
	Start time.Time
	End   time.Time

	// SortOrder is one of the Sort constants. Empty means ascending.
	SortOrder string

	// Limit caps the result size. Zero means no cap.
	Limit int
}

// columnForKind maps catalog option kinds onto observation columns.
// Anomalies are comma-joined in a single column and matched per value.
var columnForKind = map[catalog.Kind]string{
	catalog.KindApertures:     "aperture",
	catalog.KindDetectors:     "detector",
	catalog.KindExposureTypes: "exp_type",
	catalog.KindFilters:       "filter",
	catalog.KindReadPatterns:  "read_patt",
	catalog.KindSubarrays:     "subarray",
}

// Validate checks the spec against the catalog before any SQL is built.
// Unknown instruments or option values and an inverted date range are
// reported as ErrInvalidSpec.
func (q QuerySpec) Validate(cat *catalog.Catalog) error {
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return fmt.Errorf("%w: end date %s before start date %s",
			ErrInvalidSpec, q.End.Format("2006-01-02"), q.Start.Format("2006-01-02"))
	}

	switch q.SortOrder {
	case "", SortAscending, SortDescending, SortRecent:
	default:
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidSpec, q.SortOrder)
	}

	known := map[string]bool{}
	for _, name := range cat.Instruments() {
		known[name] = true
	}

	for _, instrument := range q.Instruments {
		if !known[instrument] {
			return fmt.Errorf("%w: unknown instrument %q", ErrInvalidSpec, instrument)
		}
	}

	for instrument, kinds := range q.Selections {
		if !known[instrument] {
			return fmt.Errorf("%w: unknown instrument %q", ErrInvalidSpec, instrument)
		}
		for kind, values := range kinds {
			if _, ok := columnForKind[kind]; !ok && kind != catalog.KindAnomalies {
				return fmt.Errorf("%w: unknown option kind %q", ErrInvalidSpec, kind)
			}
			for _, value := range values {
				if !cat.Valid(instrument, kind, value) {
					return fmt.Errorf("%w: %s is not a known %s %s value",
						ErrInvalidSpec, value, instrument, kind)
				}
			}
		}
	}
	return nil
}

// Search returns the observations matching the spec. An empty instrument
// set matches nothing.
func (s *Store) Search(ctx context.Context, spec QuerySpec) ([]Observation, error) {
	if len(spec.Instruments) == 0 {
		return nil, nil
	}

	where, args := buildWhere(spec)

	query := fmt.Sprintf("SELECT %s FROM observations WHERE %s ORDER BY obs_start %s",
		observationColumns, where, sortDirection(spec.SortOrder))

	// Anomaly selections filter in memory, so the row cap must wait until
	// after that filter or matching rows past the SQL window are lost.
	anomalous := hasAnomalySelections(spec.Selections)
	if spec.Limit > 0 && !anomalous {
		query += fmt.Sprintf(" LIMIT %d", spec.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	results, err := collectObservations(rows)
	if err != nil {
		return nil, err
	}

	results = filterAnomalies(results, spec.Selections)
	if spec.Limit > 0 && len(results) > spec.Limit {
		results = results[:spec.Limit]
	}
	return results, nil
}

func hasAnomalySelections(selections map[string]map[catalog.Kind][]string) bool {
	for _, kinds := range selections {
		if len(kinds[catalog.KindAnomalies]) > 0 {
			return true
		}
	}
	return false
}

func buildWhere(spec QuerySpec) (string, []any) {
	var clauses []string
	var args []any

	var instrumentClauses []string
	for _, instrument := range spec.Instruments {
		var parts []string
		parts = append(parts, "instrument = ?")
		args = append(args, instrument)

		kinds := make([]catalog.Kind, 0, len(spec.Selections[instrument]))
		for kind := range spec.Selections[instrument] {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		for _, kind := range kinds {
			column, ok := columnForKind[kind]
			if !ok {
				continue
			}
			values := spec.Selections[instrument][kind]
			if len(values) == 0 {
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			parts = append(parts, fmt.Sprintf("%s IN (%s)", column, placeholders))
			for _, value := range values {
				args = append(args, value)
			}
		}
		instrumentClauses = append(instrumentClauses, "("+strings.Join(parts, " AND ")+")")
	}
	clauses = append(clauses, "("+strings.Join(instrumentClauses, " OR ")+")")

	if !spec.Start.IsZero() {
		clauses = append(clauses, "obs_start >= ?")
		args = append(args, spec.Start.UTC())
	}
	if !spec.End.IsZero() {
		clauses = append(clauses, "obs_start <= ?")
		args = append(args, spec.End.UTC())
	}

	return strings.Join(clauses, " AND "), args
}

func sortDirection(order string) string {
	switch order {
	case SortDescending, SortRecent:
		return "DESC"
	default:
		return "ASC"
	}
}

// filterAnomalies applies anomaly selections in memory. Anomaly tags are
// comma-joined in a single column, so an IN clause cannot match them.
func filterAnomalies(observations []Observation, selections map[string]map[catalog.Kind][]string) []Observation {
	needed := map[string][]string{}
	for instrument, kinds := range selections {
		if values := kinds[catalog.KindAnomalies]; len(values) > 0 {
			needed[instrument] = values
		}
	}
	if len(needed) == 0 {
		return observations
	}

	out := observations[:0]
	for _, obs := range observations {
		values, ok := needed[obs.Instrument]
		if !ok {
			out = append(out, obs)
			continue
		}
		if hasAnyAnomaly(obs.Anomalies, values) {
			out = append(out, obs)
		}
	}
	return out
}

func hasAnyAnomaly(tags, wanted []string) bool {
	for _, tag := range tags {
		for _, want := range wanted {
			if tag == want {
				return true
			}
		}
	}
	return false
}
