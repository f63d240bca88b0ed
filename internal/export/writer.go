package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourneighborhoodchef/asinfetch/internal/models"
)

// WriteJSON saves one record as an indented JSON document under dir,
// named product_{asin}_{timestamp}.json. Returns the path written.
func WriteJSON(dir string, record *models.ProductRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", record.ASIN, err)
	}

	name := fmt.Sprintf("product_%s_%s.json", record.ASIN, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteCombinedCSV writes every flattened row into one CSV under dir,
// named all_products_{timestamp}.csv. The header is the union of all row
// keys; cells missing from a row stay empty. Returns the path written.
func WriteCombinedCSV(dir string, rows []map[string]string) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to write")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("all_products_%s.csv", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	columns := Columns(rows)
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			cells[i] = row[column]
		}
		if err := w.Write(cells); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}
