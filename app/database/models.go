package database

import (
	"time"
)

// Listing is a marketplace listing record in the database. Listings are
// upserted by SKU on every poll cycle and never deleted.
type Listing struct {
	ID            string // Database UUID
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
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublishAttempt records one dispatch to one channel, kept for
// observability and manual retry decisions only.
type PublishAttempt struct {
	ID                string
	RuleName          string
	SKU               string
	ChannelType       string
	ChannelTarget     string
	Success           bool
	ExternalMessageID string
	Error             string
	CreatedAt         time.Time
}
