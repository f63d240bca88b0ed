package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yourneighborhoodchef/asinfetch/internal/models"
)

// ParseOffers reads an all-offers listing fragment. The pinned (buy box)
// offer, when present, comes first; remaining offers keep discovery order.
// The second return reports whether the listing exposes a Prime eligibility
// filter control, which decides whether the filtered listing is fetched at
// all.
func ParseOffers(htmlText string, now time.Time) ([]models.Offer, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, false, fmt.Errorf("parse offers html: %w", err)
	}

	hasPrimeFilter := doc.Find(`#aod-filter-list i[class*="a-icon-prime"]`).Length() > 0

	var offers []models.Offer

	doc.Find("#aod-pinned-offer").Each(func(_ int, s *goquery.Selection) {
		offers = append(offers, extractOffer(s, true, now))
	})
	doc.Find(`div[id="aod-offer"]`).Each(func(_ int, s *goquery.Selection) {
		offers = append(offers, extractOffer(s, false, now))
	})

	return offers, hasPrimeFilter, nil
}

func extractOffer(s *goquery.Selection, pinned bool, now time.Time) models.Offer {
	offer := models.Offer{BuyBoxWinner: pinned}

	if s.Find(`i[class*="a-icon-prime"]`).Length() > 0 {
		offer.Prime = true
	}

	extractOfferPrice(s, &offer)
	extractOfferDelivery(s, &offer, now)
	extractOfferSeller(s, &offer)

	return offer
}

func extractOfferPrice(s *goquery.Selection, offer *models.Offer) {
	price := s.Find(`span[class*="a-price"]`).First()
	if price.Length() == 0 {
		return
	}
	whole := strings.TrimSpace(price.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(price.Find("span.a-price-fraction").First().Text())
	if whole == "" || fraction == "" {
		return
	}
	if v := ParsePrice(whole + "." + fraction); v != nil {
		offer.Price = v
		total := *v
		offer.TotalPrice = &total
	}
}

func extractOfferDelivery(s *goquery.Selection, offer *models.Offer, now time.Time) {
	promise := s.Find(`div[class*="aod-delivery-promise"]`).First()
	if promise.Length() == 0 {
		return
	}

	// fastest delivery option wins over the primary one
	delivery := promise.Find(`span[data-csa-c-content-id="DEXUnifiedCXSDM"]`).First()
	if delivery.Length() == 0 {
		delivery = promise.Find(`span[data-csa-c-content-id="DEXUnifiedCXPDM"]`).First()
	}
	if delivery.Length() == 0 {
		return
	}

	if raw, ok := delivery.Attr("data-csa-c-delivery-price"); ok {
		var shipping float64
		if raw != "FREE" {
			if v := ParsePrice(raw); v != nil {
				shipping = *v
			}
		}
		offer.ShippingCost = &shipping
		if offer.Price != nil {
			total := *offer.Price + shipping
			offer.TotalPrice = &total
		}
	}

	bold := delivery.Find("span.a-text-bold").First()
	if bold.Length() == 0 {
		return
	}
	text := CleanText(bold.Text())
	if text == "" {
		return
	}

	est := ParseDeliveryEstimate(text, now)
	offer.EarliestDays = est.EarliestDays
	offer.LatestDays = est.LatestDays
	offer.DeliveryTimeRange = est.TimeRange

	lower := strings.ToLower(text)
	switch {
	case est.TimeRange != nil && strings.Contains(lower, "overnight"):
		offer.DeliveryEstimate = "Overnight " + *est.TimeRange
	case est.TimeRange != nil && strings.Contains(lower, "today"):
		offer.DeliveryEstimate = "Today " + *est.TimeRange
	default:
		offer.DeliveryEstimate = text
	}
}

func extractOfferSeller(s *goquery.Selection, offer *models.Offer) {
	soldBy := s.Find(`div[id="aod-offer-soldBy"]`).First()
	if soldBy.Length() == 0 {
		return
	}

	// third party sellers link to their storefront, first party is a bare span
	seller := soldBy.Find("a.a-size-small.a-link-normal").First()
	if seller.Length() == 0 {
		seller = soldBy.Find("span.a-size-small.a-color-base").First()
	}
	if seller.Length() == 0 {
		return
	}

	offer.SellerName = CleanText(seller.Text())
	href, _ := seller.Attr("href")
	offer.SellerID = ExtractSellerID(href)
}

// ExtractSellerID pulls the seller= query parameter out of a storefront URL.
// Returns nil when the URL carries no resolvable seller.
func ExtractSellerID(sellerURL string) *string {
	if sellerURL == "" {
		return nil
	}
	_, after, found := strings.Cut(sellerURL, "seller=")
	if !found {
		return nil
	}
	id, _, _ := strings.Cut(after, "&")
	if id == "" {
		return nil
	}
	return &id
}
