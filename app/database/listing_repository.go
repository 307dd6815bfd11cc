package database

import (
	"database/sql"
	"fmt"

	"github.com/dealpress/dealpress/app/deal"
)

// ListingRepo handles database operations for listings.
type ListingRepo struct {
	db *DB
}

var _ ListingRepository = (*ListingRepo)(nil)

func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

// UpsertListing inserts a new listing or overwrites the mutable fields of an
// existing one, keyed by SKU. Reports whether the listing was new. A single
// statement, so concurrent polls racing on the same SKU never trip the unique
// constraint. xmax is zero only for a freshly inserted row.
func (r *ListingRepo) UpsertListing(l deal.Listing) (bool, error) {
	var isNew bool
	err := r.db.QueryRow(`
		INSERT INTO listings (
			sku, title, price, original_price, discount_pct,
			category, sales_rank, rating, review_count,
			image_url, url, last_checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (sku) DO UPDATE
		SET title = EXCLUDED.title, price = EXCLUDED.price,
		    original_price = EXCLUDED.original_price, discount_pct = EXCLUDED.discount_pct,
		    category = EXCLUDED.category, sales_rank = EXCLUDED.sales_rank,
		    rating = EXCLUDED.rating, review_count = EXCLUDED.review_count,
		    image_url = EXCLUDED.image_url, url = EXCLUDED.url,
		    last_checked_at = EXCLUDED.last_checked_at, updated_at = NOW()
		RETURNING (xmax = 0)
	`, l.SKU, l.Title, l.Price, l.OriginalPrice, l.DiscountPct,
		l.Category, l.SalesRank, l.Rating, l.ReviewCount,
		l.ImageURL, l.URL, l.LastCheckedAt).Scan(&isNew)
	if err != nil {
		return false, fmt.Errorf("failed to upsert listing: %w", err)
	}
	return isNew, nil
}

func (r *ListingRepo) GetListing(sku string) (*Listing, error) {
	var l Listing
	err := r.db.QueryRow(`
		SELECT id, sku, COALESCE(title, ''), price, original_price, discount_pct,
		       COALESCE(category, ''), sales_rank, rating, review_count,
		       COALESCE(image_url, ''), COALESCE(url, ''),
		       last_checked_at, created_at, updated_at
		FROM listings
		WHERE sku = $1
	`, sku).Scan(
		&l.ID, &l.SKU, &l.Title, &l.Price, &l.OriginalPrice, &l.DiscountPct,
		&l.Category, &l.SalesRank, &l.Rating, &l.ReviewCount,
		&l.ImageURL, &l.URL, &l.LastCheckedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &l, nil
}

func (r *ListingRepo) GetRecentListings(limit int) ([]Listing, error) {
	rows, err := r.db.Query(`
		SELECT id, sku, COALESCE(title, ''), price, original_price, discount_pct,
		       COALESCE(category, ''), sales_rank, rating, review_count,
		       COALESCE(image_url, ''), COALESCE(url, ''),
		       last_checked_at, created_at, updated_at
		FROM listings
		ORDER BY last_checked_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		err := rows.Scan(
			&l.ID, &l.SKU, &l.Title, &l.Price, &l.OriginalPrice, &l.DiscountPct,
			&l.Category, &l.SalesRank, &l.Rating, &l.ReviewCount,
			&l.ImageURL, &l.URL, &l.LastCheckedAt, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	return listings, nil
}

func (r *ListingRepo) GetListingCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM listings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get listing count: %w", err)
	}
	return count, nil
}
