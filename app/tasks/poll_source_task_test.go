package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/marketplace"
)

type mockSourceClient struct {
	pages    []*marketplace.Page
	failPage int
	calls    int
}

func (m *mockSourceClient) FetchPage(_ context.Context, _ marketplace.Query, page int) (*marketplace.Page, error) {
	m.calls++
	if m.failPage > 0 && page == m.failPage {
		return nil, fmt.Errorf("transport failure")
	}
	if page > len(m.pages) {
		return &marketplace.Page{}, nil
	}
	return m.pages[page-1], nil
}

type mockListingRepo struct {
	upserted  []deal.Listing
	known     map[string]bool
	upsertErr error
}

func (m *mockListingRepo) UpsertListing(l deal.Listing) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.upserted = append(m.upserted, l)
	if m.known == nil {
		m.known = make(map[string]bool)
	}
	isNew := !m.known[l.SKU]
	m.known[l.SKU] = true
	return isNew, nil
}

func (m *mockListingRepo) GetListing(sku string) (*database.Listing, error) {
	return nil, fmt.Errorf("listing %s not found", sku)
}

func (m *mockListingRepo) GetRecentListings(limit int) ([]database.Listing, error) {
	return nil, nil
}

func (m *mockListingRepo) GetListingCount() (int, error) {
	return len(m.known), nil
}

type mockEnqueuer struct {
	enqueued []deal.Listing
	err      error
}

func (m *mockEnqueuer) enqueueProcessListing(l deal.Listing) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, l)
	return nil
}

func rawListing(sku string, price, original float64) marketplace.RawListing {
	return marketplace.RawListing{
		SKU:           sku,
		Title:         "Product " + sku,
		Price:         price,
		OriginalPrice: original,
		Category:      "tools",
		URL:           "https://market.example.com/" + sku,
	}
}

func TestPollSourceTask_IngestsAndEnqueues(t *testing.T) {
	source := &mockSourceClient{
		pages: []*marketplace.Page{
			{Listings: []marketplace.RawListing{
				rawListing("SKU-1", 50, 100),
				rawListing("SKU-2", 30, 60),
			}},
		},
	}
	repo := &mockListingRepo{}
	enqueuer := &mockEnqueuer{}

	task := NewPollSourceTask(source, marketplace.Query{}, repo, enqueuer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(repo.upserted) != 2 {
		t.Errorf("Expected 2 upserts, got %d", len(repo.upserted))
	}
	if len(enqueuer.enqueued) != 2 {
		t.Errorf("Expected 2 enqueued listings, got %d", len(enqueuer.enqueued))
	}
	if repo.upserted[0].DiscountPct != 50 {
		t.Errorf("Expected discount computed during normalization, got %d", repo.upserted[0].DiscountPct)
	}
}

func TestPollSourceTask_FollowsPagination(t *testing.T) {
	source := &mockSourceClient{
		pages: []*marketplace.Page{
			{Listings: []marketplace.RawListing{rawListing("SKU-1", 50, 100)}, HasMore: true},
			{Listings: []marketplace.RawListing{rawListing("SKU-2", 30, 60)}, HasMore: true},
			{Listings: []marketplace.RawListing{rawListing("SKU-3", 20, 40)}},
		},
	}
	repo := &mockListingRepo{}
	enqueuer := &mockEnqueuer{}

	task := NewPollSourceTask(source, marketplace.Query{}, repo, enqueuer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if source.calls != 3 {
		t.Errorf("Expected 3 page fetches, got %d", source.calls)
	}
	if len(repo.upserted) != 3 {
		t.Errorf("Expected 3 upserts, got %d", len(repo.upserted))
	}
}

func TestPollSourceTask_SkipsMalformedRecords(t *testing.T) {
	source := &mockSourceClient{
		pages: []*marketplace.Page{
			{Listings: []marketplace.RawListing{
				rawListing("SKU-1", 50, 100),
				{Title: "No SKU", Price: 10},
				{SKU: "SKU-NEG", Title: "Negative price", Price: -5},
				rawListing("SKU-2", 30, 60),
			}},
		},
	}
	repo := &mockListingRepo{}
	enqueuer := &mockEnqueuer{}

	task := NewPollSourceTask(source, marketplace.Query{}, repo, enqueuer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected malformed records to be skipped, got error: %v", err)
	}

	if len(repo.upserted) != 2 {
		t.Errorf("Expected only valid records upserted, got %d", len(repo.upserted))
	}
}

func TestPollSourceTask_TransportFailureFailsTask(t *testing.T) {
	source := &mockSourceClient{
		pages: []*marketplace.Page{
			{Listings: []marketplace.RawListing{rawListing("SKU-1", 50, 100)}, HasMore: true},
		},
		failPage: 2,
	}
	repo := &mockListingRepo{}
	enqueuer := &mockEnqueuer{}

	task := NewPollSourceTask(source, marketplace.Query{}, repo, enqueuer)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected transport failure to fail the task")
	}
}

func TestPollSourceTask_UpsertFailureFailsTask(t *testing.T) {
	source := &mockSourceClient{
		pages: []*marketplace.Page{
			{Listings: []marketplace.RawListing{rawListing("SKU-1", 50, 100)}},
		},
	}
	repo := &mockListingRepo{upsertErr: fmt.Errorf("database unavailable")}
	enqueuer := &mockEnqueuer{}

	task := NewPollSourceTask(source, marketplace.Query{}, repo, enqueuer)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected upsert failure to fail the task")
	}
	if len(enqueuer.enqueued) != 0 {
		t.Errorf("Expected nothing enqueued after upsert failure, got %d", len(enqueuer.enqueued))
	}
}

func TestPollSourceTask_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewPollSourceTask(&mockSourceClient{}, marketplace.Query{}, &mockListingRepo{}, &mockEnqueuer{})
	if err := task.Execute(ctx); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}
