package archive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/observatory/quicklook/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fixtures := []Observation{
		{
			Rootname:      "jw01022001001_02101_00001_mirimage",
			Instrument:    "miri",
			Proposal:      "01022",
			ObsStart:      time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC),
			Detector:      "MIRIMAGE",
			Aperture:      "MIRIM_FULL",
			Filter:        "F770W",
			ExpType:       "MIR_IMAGE",
			ReadPattern:   "FAST",
			Subarray:      "FULL",
			Anomalies:     []string{"snowball"},
			PreviewPath:   "miri/jw01022001001_02101_00001_mirimage_cal.jpg",
			ThumbnailPath: "miri/jw01022001001_02101_00001_mirimage_thumb.jpg",
		},
		{
			Rootname:    "jw01022002001_02101_00001_mirimage",
			Instrument:  "miri",
			Proposal:    "01022",
			ObsStart:    time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC),
			ObsEnd:      time.Date(2025, 5, 10, 12, 45, 0, 0, time.UTC),
			Detector:    "MIRIMAGE",
			Aperture:    "MIRIM_FULL",
			Filter:      "F1000W",
			ExpType:     "MIR_IMAGE",
			ReadPattern: "FAST",
			Subarray:    "FULL",
		},
		{
			Rootname:      "jw02733001001_02101_00002_nrcb1",
			Instrument:    "nircam",
			Proposal:      "02733",
			ObsStart:      time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 4, 20, 8, 20, 0, 0, time.UTC),
			Detector:      "NRCB1",
			Aperture:      "NRCB1_FULL",
			Filter:        "F200W",
			ExpType:       "NRC_IMAGE",
			ReadPattern:   "RAPID",
			Subarray:      "FULL",
			ThumbnailPath: "nircam/jw02733001001_02101_00002_nrcb1_thumb.jpg",
		},
	}
	for _, obs := range fixtures {
		require.NoError(t, store.Insert(context.Background(), obs))
	}
	return store
}

func TestSearchEmptyInstrumentsMatchesNothing(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchByInstrument(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "jw01022001001_02101_00001_mirimage", results[0].Rootname)
}

func TestSearchWithOptionSelections(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri", "nircam"},
		Selections: map[string]map[catalog.Kind][]string{
			"miri": {catalog.KindFilters: {"F770W"}},
		},
	})
	require.NoError(t, err)

	// F770W narrows miri to one row; nircam has no selections so all of
	// its rows match.
	require.Len(t, results, 2)
	rootnames := []string{results[0].Rootname, results[1].Rootname}
	require.Contains(t, rootnames, "jw01022001001_02101_00001_mirimage")
	require.Contains(t, rootnames, "jw02733001001_02101_00002_nrcb1")
}

func TestSearchAnomalySelection(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri"},
		Selections: map[string]map[catalog.Kind][]string{
			"miri": {catalog.KindAnomalies: {"snowball"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []string{"snowball"}, results[0].Anomalies)
}

func TestSearchAnomalySelectionBeyondLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(context.Background(), Observation{
			Rootname:   "jw0100100100" + string(rune('1'+i)) + "_02101_00001_mirimage",
			Instrument: "miri",
			Proposal:   "01001",
			ObsStart:   base.Add(time.Duration(i) * time.Hour),
		}))
	}
	// The only anomalous row sorts after every clean one.
	require.NoError(t, store.Insert(context.Background(), Observation{
		Rootname:   "jw01001002001_02101_00001_mirimage",
		Instrument: "miri",
		Proposal:   "01001",
		ObsStart:   base.Add(24 * time.Hour),
		Anomalies:  []string{"snowball"},
	}))

	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri"},
		Selections: map[string]map[catalog.Kind][]string{
			"miri": {catalog.KindAnomalies: {"snowball"}},
		},
		Limit: 3,
	})
	require.NoError(t, err)

	// The row cap applies after the anomaly filter, so a match past the
	// first Limit rows is still found.
	require.Len(t, results, 1)
	require.Equal(t, "jw01001002001_02101_00001_mirimage", results[0].Rootname)
}

func TestSearchLimitCapsResults(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri", "nircam"},
		Limit:       2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchDateRangeAndSort(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{
		Instruments: []string{"miri", "nircam"},
		Start:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		SortOrder:   SortDescending,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "jw01022002001_02101_00001_mirimage", results[0].Rootname)
}

func TestValidateSpec(t *testing.T) {
	cat, err := catalog.New()
	require.NoError(t, err)

	valid := QuerySpec{
		Instruments: []string{"miri"},
		Selections: map[string]map[catalog.Kind][]string{
			"miri": {catalog.KindFilters: {"F770W"}},
		},
	}
	require.NoError(t, valid.Validate(cat))

	unknownInstrument := QuerySpec{Instruments: []string{"hubble"}}
	require.ErrorIs(t, unknownInstrument.Validate(cat), ErrInvalidSpec)

	unknownValue := QuerySpec{
		Instruments: []string{"miri"},
		Selections: map[string]map[catalog.Kind][]string{
			"miri": {catalog.KindFilters: {"F9999W"}},
		},
	}
	require.ErrorIs(t, unknownValue.Validate(cat), ErrInvalidSpec)

	inverted := QuerySpec{
		Instruments: []string{"miri"},
		Start:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	require.ErrorIs(t, inverted.Validate(cat), ErrInvalidSpec)
}

func TestProposals(t *testing.T) {
	store := newTestStore(t)

	all, err := store.Proposals(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"01022", "02733"}, all)

	miri, err := store.InstrumentProposals(context.Background(), "miri")
	require.NoError(t, err)
	require.Equal(t, []string{"01022"}, miri)
}

func TestFilenamesByRootnamePrefix(t *testing.T) {
	store := newTestStore(t)

	names, err := store.FilenamesByRootname(context.Background(), "jw01022")
	require.NoError(t, err)
	require.Len(t, names, 2)

	exact, err := store.FilenamesByRootname(context.Background(), "jw02733001001_02101_00002_nrcb1")
	require.NoError(t, err)
	require.Equal(t, []string{"jw02733001001_02101_00002_nrcb1"}, exact)

	_, err = store.FilenamesByRootname(context.Background(), "jw99999")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestThumbnailByRootname(t *testing.T) {
	store := newTestStore(t)

	path, err := store.ThumbnailByRootname(context.Background(), "jw02733001001_02101_00002_nrcb1")
	require.NoError(t, err)
	require.Equal(t, "nircam/jw02733001001_02101_00002_nrcb1_thumb.jpg", path)

	// A row without a thumbnail is reported as not found, not as empty.
	_, err = store.ThumbnailByRootname(context.Background(), "jw01022002001_02101_00001_mirimage")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestWriteCSV(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), QuerySpec{Instruments: []string{"miri"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "rootname,instrument,proposal"))
	require.Contains(t, lines[1], "jw01022001001_02101_00001_mirimage")
}
