package marketplace

// RawListing is one record as returned by the marketplace API, before
// normalization.
type RawListing struct {
	SKU           string   `json:"sku"`
	Title         string   `json:"title"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"original_price"`
	Category      string   `json:"category"`
	SalesRank     *int     `json:"sales_rank"`
	Rating        *float64 `json:"rating"`
	ReviewCount   *int     `json:"review_count"`
	ImageURL      string   `json:"image_url"`
	URL           string   `json:"url"`
}

type Page struct {
	Listings []RawListing `json:"listings"`
	HasMore  bool         `json:"has_more"`
}

// Query is the externally supplied filter the source applies server-side.
type Query struct {
	Categories  []string
	MinDiscount int
	MinReviews  int
}
