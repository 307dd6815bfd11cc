package deal

import (
	"math"
	"time"
)

// Listing is the canonical marketplace product record flowing through the
// pipeline. SKU is the stable external identifier used for deduplication.
type Listing struct {
	SKU           string
	Title         string
	Price         float64
	OriginalPrice float64
	DiscountPct   int
	Category      string
	SalesRank     *int
	Rating        *float64
	ReviewCount   *int
	ImageURL      string
	URL           string
	LastCheckedAt time.Time
}

// DiscountPct derives the discount percentage from current and original
// price. A zero or missing original price yields 0.
func DiscountPct(current, original float64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Round((original - current) / original * 100))
}
