// Package models defines the product record produced by a fetch.
package models

// An ASIN is a 10 character alphanumeric product key.
func IsValidASIN(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// ProductRecord is the unit returned to the caller: one ASIN, one capture,
// details plus the reconciled offer listing. Immutable after assembly.
type ProductRecord struct {
	ASIN           string          `json:"asin"`
	Timestamp      int64           `json:"timestamp"`
	ProductDetails *ProductDetails `json:"product_details"`
	Offers         []Offer         `json:"offers_data"`
}

// ProductDetails is best-effort: every section is optional and a missing
// field is not an error.
type ProductDetails struct {
	Main        *MainSection   `json:"main_product_details_section,omitempty"`
	Reviews     *ReviewSummary `json:"reviews_histogram_section,omitempty"`
	Information map[string]any `json:"product_information_section,omitempty"`
	APlus       []APlusItem    `json:"aplus_content,omitempty"`
	BrandStory  *BrandStory    `json:"brand_story_section,omitempty"`
}

type MainSection struct {
	ProductTitle     string          `json:"product_title,omitempty"`
	Brand            string          `json:"brand,omitempty"`
	AverageRating    *float64        `json:"average_rating,omitempty"`
	FeatureBullets   []string        `json:"feature_bullets,omitempty"`
	AvailableOptions []VariantOption `json:"available_options,omitempty"`
	Media            *Media          `json:"media,omitempty"`
}

// VariantOption is one selectable twister swatch (size, color, capacity).
type VariantOption struct {
	ASIN         string   `json:"asin"`
	Label        string   `json:"label"`
	Price        *float64 `json:"price,omitempty"`
	Availability string   `json:"availability,omitempty"`
	Selected     bool     `json:"selected"`
}

type Media struct {
	Images []ImageItem `json:"images"`
	Videos []VideoItem `json:"videos"`
}

type ImageItem struct {
	URL       string `json:"url"`
	HighRes   bool   `json:"high_res"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Large     string `json:"large,omitempty"`
}

type VideoItem struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ReviewSummary carries the rating histogram. Bucket counts are derived from
// percentage and total, not scraped, so they reproduce exactly.
type ReviewSummary struct {
	AverageRating *float64           `json:"average_rating"`
	TotalRatings  *int               `json:"total_ratings"`
	Distribution  map[int]StarBucket `json:"distribution"`
}

type StarBucket struct {
	Percentage int `json:"percentage"`
	Count      int `json:"count"`
}

// CustomerReviews is the structured form of the "Customer Reviews" info row.
type CustomerReviews struct {
	Rating float64 `json:"rating"`
	Count  int     `json:"count"`
}

type APlusItem struct {
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text,omitempty"`
}

type BrandStory struct {
	HeroImage     *ImageRef        `json:"hero_image,omitempty"`
	CarouselCards []BrandStoryCard `json:"carousel_cards,omitempty"`
}

type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type BrandStoryCard struct {
	BackgroundImage *ImageRef `json:"background_image,omitempty"`
	Logo            *ImageRef `json:"logo,omitempty"`
	Heading         string    `json:"heading,omitempty"`
	Text            string    `json:"text,omitempty"`
	LinkedASIN      string    `json:"linked_asin,omitempty"`
}

// Offer is one seller's listing. SellerID is nil when the seller could not be
// resolved; such offers are treated as distinct entries during merging.
type Offer struct {
	SellerID          *string  `json:"seller_id"`
	SellerName        string   `json:"seller_name,omitempty"`
	BuyBoxWinner      bool     `json:"buy_box_winner"`
	Prime             bool     `json:"prime"`
	Price             *float64 `json:"price,omitempty"`
	ShippingCost      *float64 `json:"shipping_cost,omitempty"`
	TotalPrice        *float64 `json:"total_price,omitempty"`
	DeliveryEstimate  string   `json:"delivery_estimate,omitempty"`
	EarliestDays      *int     `json:"earliest_days"`
	LatestDays        *int     `json:"latest_days"`
	DeliveryTimeRange *string  `json:"delivery_time_range"`
}

// SellerKey returns the merge key for the offer.
func (o Offer) SellerKey() (string, bool) {
	if o.SellerID == nil || *o.SellerID == "" {
		return "", false
	}
	return *o.SellerID, true
}
