package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourneighborhoodchef/asinfetch/internal/models"
)

func ptr[T any](v T) *T { return &v }

func sampleRecord() *models.ProductRecord {
	return &models.ProductRecord{
		ASIN:      "B0TEST1234",
		Timestamp: 1706777400,
		ProductDetails: &models.ProductDetails{
			Main: &models.MainSection{
				ProductTitle:   "Sample Widget",
				Brand:          "Acme",
				AverageRating:  ptr(4.3),
				FeatureBullets: []string{"first", "second"},
			},
			Reviews: &models.ReviewSummary{
				AverageRating: ptr(4.3),
				TotalRatings:  ptr(1000),
				Distribution: map[int]models.StarBucket{
					5: {Percentage: 45, Count: 450},
				},
			},
		},
		Offers: []models.Offer{
			{
				SellerID:   ptr("A1SELLER"),
				SellerName: "Acme Store",
				Prime:      true,
				Price:      ptr(1299.99),
				TotalPrice: ptr(1299.99),
			},
		},
	}
}

func TestFlatten(t *testing.T) {
	row, err := Flatten(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "B0TEST1234", row["asin"])
	assert.Equal(t, "1706777400", row["timestamp"])
	assert.Equal(t, "Sample Widget", row["product_details_main_product_details_section_product_title"])
	assert.Equal(t, "first", row["product_details_main_product_details_section_feature_bullets_1"])
	assert.Equal(t, "second", row["product_details_main_product_details_section_feature_bullets_2"])
	assert.Equal(t, "45", row["product_details_reviews_histogram_section_distribution_5_percentage"])
	assert.Equal(t, "A1SELLER", row["offers_data_1_seller_id"])
	assert.Equal(t, "true", row["offers_data_1_prime"])
	assert.Equal(t, "1299.99", row["offers_data_1_price"], "numeric text survives untouched")
}

func TestFlattenOmitsNullLeaves(t *testing.T) {
	record := &models.ProductRecord{
		ASIN:   "B0TEST1234",
		Offers: []models.Offer{{SellerName: "Acme"}},
	}
	row, err := Flatten(record)
	require.NoError(t, err)

	_, present := row["offers_data_1_seller_id"]
	assert.False(t, present, "null leaves produce no column")
	_, present = row["product_details"]
	assert.False(t, present)
}

// every non-null leaf must survive the flatten as its exact string form
func TestFlattenRoundTrip(t *testing.T) {
	record := sampleRecord()
	row, err := Flatten(record)
	require.NoError(t, err)

	raw, err := json.Marshal(record)
	require.NoError(t, err)
	var tree map[string]any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&tree))

	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, child := range val {
				key := k
				if prefix != "" {
					key = prefix + "_" + k
				}
				walk(key, child)
			}
		case []any:
			for i, child := range val {
				walk(prefix+"_"+strconv.Itoa(i+1), child)
			}
		case nil:
		case json.Number:
			assert.Equal(t, val.String(), row[prefix], prefix)
		case string:
			assert.Equal(t, val, row[prefix], prefix)
		case bool:
			assert.Equal(t, val, row[prefix] == "true", prefix)
		}
	}
	walk("", tree)
}

func TestColumnsOrdering(t *testing.T) {
	rows := []map[string]string{
		{
			"offers_data_1_price": "10",
			"asin":                "B0TEST1234",
			"product_details_main_product_details_section_brand": "Acme",
			"timestamp": "1706777400",
		},
		{
			"offers_data_1_seller_id": "A1",
			"product_details_reviews_histogram_section_total_ratings": "5",
			"asin": "B0TEST5678",
		},
	}

	columns := Columns(rows)
	require.Len(t, columns, 6)
	assert.Equal(t, "asin", columns[0])
	assert.Equal(t, "timestamp", columns[1])
	assert.Equal(t, "product_details_main_product_details_section_brand", columns[2])
	assert.Equal(t, "product_details_reviews_histogram_section_total_ratings", columns[3])
	assert.Equal(t, "offers_data_1_price", columns[4], "offer columns come last")
	assert.Equal(t, "offers_data_1_seller_id", columns[5])
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(dir, sampleRecord())
	require.NoError(t, err)
	assert.Contains(t, path, "product_B0TEST1234_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record models.ProductRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "B0TEST1234", record.ASIN)
	require.Len(t, record.Offers, 1)
	assert.Equal(t, "Acme Store", record.Offers[0].SellerName)
}

func TestWriteCombinedCSV(t *testing.T) {
	first, err := Flatten(sampleRecord())
	require.NoError(t, err)
	second := map[string]string{"asin": "B0OTHER123", "timestamp": "1706777401"}

	dir := t.TempDir()
	path, err := WriteCombinedCSV(dir, []map[string]string{first, second})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "asin", header[0])

	byColumn := func(row []string, name string) string {
		for i, column := range header {
			if column == name {
				return row[i]
			}
		}
		return ""
	}
	assert.Equal(t, "B0TEST1234", byColumn(records[1], "asin"))
	assert.Equal(t, "1299.99", byColumn(records[1], "offers_data_1_price"))
	assert.Equal(t, "B0OTHER123", byColumn(records[2], "asin"))
	assert.Equal(t, "", byColumn(records[2], "offers_data_1_price"), "missing cells stay empty")
}

func TestWriteCombinedCSVEmpty(t *testing.T) {
	_, err := WriteCombinedCSV(t.TempDir(), nil)
	assert.Error(t, err)
}
