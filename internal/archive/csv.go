package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{
	"rootname", "instrument", "proposal", "obs_start", "obs_end",
	"detector", "aperture", "filter", "pupil", "exp_type", "read_patt",
	"subarray", "anomalies",
}

// WriteCSV streams a search result as CSV, one observation per row.
func WriteCSV(w io.Writer, observations []Observation) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("archive: write csv header: %w", err)
	}
	for _, obs := range observations {
		record := []string{
			obs.Rootname,
			obs.Instrument,
			obs.Proposal,
			obs.ObsStart.UTC().Format(time.RFC3339),
			obs.ObsEnd.UTC().Format(time.RFC3339),
			obs.Detector,
			obs.Aperture,
			obs.Filter,
			obs.Pupil,
			obs.ExpType,
			obs.ReadPattern,
			obs.Subarray,
			strings.Join(obs.Anomalies, ";"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("archive: write csv row %s: %w", obs.Rootname, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("archive: flush csv: %w", err)
	}
	return nil
}
