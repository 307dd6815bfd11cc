package database

import (
	"github.com/dealpress/dealpress/app/deal"
)

type ListingRepository interface {
	UpsertListing(l deal.Listing) (isNew bool, err error)
	GetListing(sku string) (*Listing, error)
	GetRecentListings(limit int) ([]Listing, error)
	GetListingCount() (int, error)
}

type AttemptRepository interface {
	RecordAttempt(a PublishAttempt) error
	GetAttemptStats() (total, succeeded, failed int, err error)
}
