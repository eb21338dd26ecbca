package edb

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV streams a range-query result as CSV: one reading per row with
// the mnemonic identifier repeated, matching the exported telemetry format.
func WriteCSV(w io.Writer, series Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"mnemonic", "obs_time", "value", "unit"}); err != nil {
		return fmt.Errorf("edb: write csv header: %w", err)
	}
	for _, sample := range series.Samples {
		record := []string{
			series.Mnemonic.Identifier,
			sample.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(sample.Value, 'g', -1, 64),
			series.Mnemonic.Unit,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("edb: write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("edb: flush csv: %w", err)
	}
	return nil
}
