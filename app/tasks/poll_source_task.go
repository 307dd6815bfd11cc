package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/marketplace"
)

// maxPages bounds one poll cycle against a runaway source.
const maxPages = 50

// processEnqueuer hands upserted listings to the downstream pipeline.
type processEnqueuer interface {
	enqueueProcessListing(l deal.Listing) error
}

// PollSourceTask ingests one marketplace poll cycle: fetch pages, normalize
// records, upsert by SKU, and enqueue downstream processing per upserted
// listing. A malformed record is skipped and counted; a transport failure
// fails the whole task, which the scheduler retries with nothing committed
// half-way (upserts are idempotent per record).
type PollSourceTask struct {
	Task
	source      marketplace.SourceClient
	query       marketplace.Query
	listingRepo database.ListingRepository
	enqueuer    processEnqueuer
}

func NewPollSourceTask(source marketplace.SourceClient, query marketplace.Query,
	listingRepo database.ListingRepository, enqueuer processEnqueuer) *PollSourceTask {
	return &PollSourceTask{
		Task:        NewTask(TaskTypePollSource, "marketplace"),
		source:      source,
		query:       query,
		listingRepo: listingRepo,
		enqueuer:    enqueuer,
	}
}

func (t *PollSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	totalCount := 0
	skippedCount := 0
	newCount := 0
	updatedCount := 0
	now := time.Now()

	for page := 1; page <= maxPages; page++ {
		result, err := t.source.FetchPage(ctx, t.query, page)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		totalCount += len(result.Listings)

		for _, raw := range result.Listings {
			listing, err := marketplace.Normalize(raw, now)
			if err != nil {
				skippedCount++
				slog.Debug("Skipping malformed record", "page", page, "error", err)
				continue
			}

			isNew, err := t.listingRepo.UpsertListing(listing)
			if err != nil {
				return fmt.Errorf("failed to upsert listing %s: %w", listing.SKU, err)
			}
			if isNew {
				newCount++
			} else {
				updatedCount++
			}

			if err := t.enqueuer.enqueueProcessListing(listing); err != nil {
				slog.Warn("Failed to enqueue ProcessListingTask", "sku", listing.SKU, "error", err)
			}
		}

		if !result.HasMore {
			break
		}
	}

	slog.Info("Task completed",
		"type", "PollSource",
		"duration", t.GetDuration(),
		"total", totalCount,
		"new", newCount,
		"updated", updatedCount,
		"skipped", skippedCount)

	return nil
}
