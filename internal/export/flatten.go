// Package export writes fetch results out: one JSON document per product
// and a combined CSV with every field path flattened into a column.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yourneighborhoodchef/asinfetch/internal/models"
)

// Flatten collapses a record into single-level columns: nested keys join
// with underscores, list elements get 1-based indices, and every leaf is
// rendered as a string. Numbers pass through as their original JSON text so
// no precision is lost; null leaves are omitted.
func Flatten(record *models.ProductRecord) (map[string]string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", record.ASIN, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("flatten %s: %w", record.ASIN, err)
	}

	out := make(map[string]string)
	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			if prefix != "" {
				key = prefix + "_" + key
			}
			flattenInto(out, key, child)
		}
	case []any:
		for i, child := range val {
			flattenInto(out, fmt.Sprintf("%s_%d", prefix, i+1), child)
		}
	case json.Number:
		out[prefix] = val.String()
	case string:
		out[prefix] = val
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case nil:
	}
}

// column groups, in the order they appear left to right
var columnGroups = []string{
	"asin",
	"timestamp",
	"product_details_main_product_details_section",
	"product_details_reviews_histogram_section",
	"product_details_product_information_section",
	"product_details_aplus_content",
	"product_details",
}

const offersPrefix = "offers_data"

// Columns computes the header for a combined CSV: the union of all row
// keys, identifier and detail groups first, offer columns last, sorted
// alphabetically within each group.
func Columns(rows []map[string]string) []string {
	seen := make(map[string]bool)
	grouped := make([][]string, len(columnGroups))
	var offers, remaining []string

	for _, row := range rows {
		for key := range row {
			if seen[key] {
				continue
			}
			seen[key] = true

			placed := false
			for i, prefix := range columnGroups {
				if strings.HasPrefix(key, prefix) {
					grouped[i] = append(grouped[i], key)
					placed = true
					break
				}
			}
			if placed {
				continue
			}
			if strings.HasPrefix(key, offersPrefix) {
				offers = append(offers, key)
			} else {
				remaining = append(remaining, key)
			}
		}
	}

	var columns []string
	for _, group := range grouped {
		sort.Strings(group)
		columns = append(columns, group...)
	}
	sort.Strings(remaining)
	sort.Strings(offers)
	columns = append(columns, remaining...)
	return append(columns, offers...)
}
