package parse

import "github.com/yourneighborhoodchef/asinfetch/internal/models"

// MergeOffers reconciles the unfiltered listing with the Prime-filtered
// subset. The unfiltered listing is authoritative: each of its offers gets
// its Prime eligibility flag set by seller membership in the filtered
// listing, buy box winners stay first, and everything else keeps discovery
// order. Offers that only appear in the filtered listing are dropped — that
// fetch exists for the eligibility signal, not as an offer source.
func MergeOffers(all, filtered []models.Offer) []models.Offer {
	eligible := make(map[string]struct{}, len(filtered))
	for _, offer := range filtered {
		if key, ok := offer.SellerKey(); ok {
			eligible[key] = struct{}{}
		}
	}

	pinned := make([]models.Offer, 0, 1)
	rest := make([]models.Offer, 0, len(all))
	for _, offer := range all {
		if key, ok := offer.SellerKey(); ok {
			_, offer.Prime = eligible[key]
		} else {
			offer.Prime = false
		}
		if offer.BuyBoxWinner {
			pinned = append(pinned, offer)
		} else {
			rest = append(rest, offer)
		}
	}

	return append(pinned, rest...)
}
