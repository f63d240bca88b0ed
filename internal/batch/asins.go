// Package batch turns a list of ASINs into exported product records:
// collecting identifiers, fanning fetches out over the session pool under
// the concurrency gate, and writing the per-product and combined outputs.
package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
)

// CollectASINs merges command-line ASINs with those from an optional file,
// dropping blanks and duplicates. The file may be a plain list (one ASIN
// per line) or a CSV with an "asin" column. An empty result is an error:
// there is no work to do.
func CollectASINs(args []string, file string) ([]string, error) {
	seen := make(map[string]bool)
	var asins []string
	add := func(asin string) {
		asin = strings.TrimSpace(asin)
		if asin == "" || seen[asin] {
			return
		}
		seen[asin] = true
		asins = append(asins, asin)
	}

	for _, asin := range args {
		add(asin)
	}

	if file != "" {
		fromFile, err := readASINFile(file)
		if err != nil {
			return nil, err
		}
		for _, asin := range fromFile {
			add(asin)
		}
		logging.Infof("loaded %d ASINs from %s", len(fromFile), file)
	}

	if len(asins) == 0 {
		return nil, fmt.Errorf("no ASINs to process")
	}
	sort.Strings(asins)
	return asins, nil
}

func readASINFile(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readASINColumn(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ASIN file: %w", err)
	}
	var asins []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			asins = append(asins, line)
		}
	}
	return asins, nil
}

func readASINColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ASIN file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	column := -1
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), "asin") {
			column = i
			break
		}
	}
	if column == -1 {
		return nil, fmt.Errorf("%s has no asin column", path)
	}

	var asins []string
	for _, row := range records[1:] {
		if column < len(row) {
			if asin := strings.TrimSpace(row[column]); asin != "" {
				asins = append(asins, asin)
			}
		}
	}
	return asins, nil
}
