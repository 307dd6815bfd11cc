package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/dealpress/dealpress/app/deal"
)

// Normalize converts a raw marketplace record into a canonical listing.
// Records without a resolvable SKU and records with a negative price are
// rejected; the caller counts them as skipped, they never fail a batch.
func Normalize(raw RawListing, now time.Time) (deal.Listing, error) {
	sku := strings.TrimSpace(raw.SKU)
	if sku == "" {
		return deal.Listing{}, fmt.Errorf("record has no resolvable identifier")
	}

	if raw.Price < 0 {
		return deal.Listing{}, fmt.Errorf("record %s has negative price %.2f", sku, raw.Price)
	}

	original := raw.OriginalPrice
	if original < 0 {
		original = 0
	}

	var rating *float64
	if raw.Rating != nil {
		r := *raw.Rating
		if r < 0 {
			r = 0
		}
		if r > 5 {
			r = 5
		}
		rating = &r
	}

	var reviews *int
	if raw.ReviewCount != nil && *raw.ReviewCount >= 0 {
		reviews = raw.ReviewCount
	}

	var rank *int
	if raw.SalesRank != nil && *raw.SalesRank > 0 {
		rank = raw.SalesRank
	}

	return deal.Listing{
		SKU:           sku,
		Title:         strings.TrimSpace(raw.Title),
		Price:         raw.Price,
		OriginalPrice: original,
		DiscountPct:   deal.DiscountPct(raw.Price, original),
		Category:      strings.TrimSpace(raw.Category),
		SalesRank:     rank,
		Rating:        rating,
		ReviewCount:   reviews,
		ImageURL:      raw.ImageURL,
		URL:           raw.URL,
		LastCheckedAt: now.UTC(),
	}, nil
}
