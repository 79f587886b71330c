// Package export serializes vulnerability tables for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"vulndash/internal/models"
)

// Download defaults.
const (
	DefaultFilename = "high_risk_vulnerabilities.csv"
	ContentType     = "text/csv"
)

// WriteCSV writes t as UTF-8 CSV: a header row with the table's columns and
// one row per record. Absent fields are written as empty cells.
func WriteCSV(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(t.Columns))

	for i, rec := range t.Records {
		for j, col := range t.Columns {
			v, _ := rec.Fields.Get(col)
			row[j] = models.FormatScalar(v)
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	return nil
}

// CSV returns the CSV encoding of t.
func CSV(t *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
