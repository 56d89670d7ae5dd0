// Package export serializes a measurement series as delimited text with
// a header row.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/labshed/gpibctl/session"
)

// WriteCSV writes the series to w. The value column is named after the
// measurement label, "value" if the label is empty.
func WriteCSV(w io.Writer, label string, samples []session.Sample) error {
	if label == "" {
		label = "value"
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_s", label}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Elapsed, 'f', 3, 64),
			strconv.FormatFloat(s.Value, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the series to a file.
func SaveCSV(path, label string, samples []session.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, label, samples); err != nil {
		return err
	}
	return f.Close()
}
