package copy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dealpress/dealpress/app/cache"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/rules"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeModel struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (m *fakeModel) Complete(ctx context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func generatedRule(name string, quota int, template string) *rules.Rule {
	return &rules.Rule{
		Name:   name,
		Tenant: "acme",
		Settings: rules.RuleSettings{
			Enabled:    true,
			DailyQuota: &quota,
		},
		Copy: rules.RuleCopy{
			Mode:     rules.ModeGenerated,
			Template: template,
			Style:    "short and punchy",
			Model:    "gpt-4o-mini",
		},
		Channels: []rules.RuleChannel{{Type: "telegram", Target: "@deals"}},
	}
}

func generatorListing(sku string, price float64) deal.Listing {
	return deal.Listing{
		SKU:           sku,
		Title:         "Cordless Drill",
		Price:         price,
		OriginalPrice: price * 2,
		DiscountPct:   50,
		Category:      "tools",
	}
}

func newTestGenerator(model *fakeModel, clock Clock) (*Generator, *cache.Memory) {
	store := cache.NewMemory()
	renderer := NewRenderer("en", "")
	gen := NewGenerator(store, store, model, renderer, clock, 24*time.Hour, 5*time.Second)
	return gen, store
}

func TestGenerator_TemplateMode(t *testing.T) {
	model := &fakeModel{text: "generated text"}
	gen, _ := newTestGenerator(model, &fakeClock{now: time.Now()})

	quota := 10
	rule := &rules.Rule{
		Name:     "templated",
		Settings: rules.RuleSettings{DailyQuota: &quota},
		Copy: rules.RuleCopy{
			Mode:     rules.ModeTemplate,
			Template: "{{title}} now {{discount}}% off!",
		},
	}

	result := gen.Run(context.Background(), generatorListing("SKU-1", 100), rule)

	if result.Outcome != OutcomeTemplate {
		t.Errorf("Expected template outcome, got %s", result.Outcome)
	}
	if result.Text != "Cordless Drill now 50% off!" {
		t.Errorf("Unexpected rendered text: %q", result.Text)
	}
	if model.callCount() != 0 {
		t.Errorf("Template mode must never call the model, got %d calls", model.callCount())
	}
}

func TestGenerator_CacheHitSkipsQuota(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, store := newTestGenerator(model, clock)

	rule := generatedRule("gen", 10, "")
	listing := generatorListing("SKU-1", 100)
	ctx := context.Background()

	first := gen.Run(ctx, listing, rule)
	if first.Outcome != OutcomeGenerated {
		t.Fatalf("Expected generated outcome, got %s", first.Outcome)
	}

	second := gen.Run(ctx, listing, rule)
	if second.Outcome != OutcomeCached {
		t.Errorf("Expected cached outcome on second call, got %s", second.Outcome)
	}
	if second.Text != first.Text {
		t.Errorf("Expected identical cached text")
	}
	if model.callCount() != 1 {
		t.Errorf("Expected exactly 1 model call, got %d", model.callCount())
	}

	used, _ := store.Current(ctx, QuotaKey("gen", clock.Now()))
	if used != 1 {
		t.Errorf("Cache hit must not increment the counter: expected 1, got %d", used)
	}
}

func TestGenerator_QuotaExhaustedFallsBack(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, _ := newTestGenerator(model, clock)

	rule := generatedRule("gen", 1, "{{title}} fallback at {{discount}}%")
	ctx := context.Background()

	first := gen.Run(ctx, generatorListing("SKU-1", 100), rule)
	if first.Outcome != OutcomeGenerated {
		t.Fatalf("Expected first call to generate, got %s", first.Outcome)
	}

	second := gen.Run(ctx, generatorListing("SKU-2", 80), rule)
	if second.Outcome != OutcomeFallbackQuota {
		t.Errorf("Expected quota fallback, got %s", second.Outcome)
	}
	if !strings.Contains(second.Text, "fallback") {
		t.Errorf("Expected rendered fallback template, got %q", second.Text)
	}
	if model.callCount() != 1 {
		t.Errorf("At-quota generation must never call the model, got %d calls", model.callCount())
	}
}

func TestGenerator_QuotaFallbackWithoutTemplateIsNonEmpty(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, _ := newTestGenerator(model, clock)

	rule := generatedRule("gen", 0, "")

	result := gen.Run(context.Background(), generatorListing("SKU-1", 100), rule)
	if result.Outcome != OutcomeFallbackQuota {
		t.Fatalf("Expected quota fallback, got %s", result.Outcome)
	}
	if strings.TrimSpace(result.Text) == "" {
		t.Error("Fallback text must never be empty")
	}
	if model.callCount() != 0 {
		t.Errorf("Expected no model calls with zero quota, got %d", model.callCount())
	}
}

func TestGenerator_PriceChangeInvalidatesCache(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, _ := newTestGenerator(model, clock)

	rule := generatedRule("gen", 10, "")
	ctx := context.Background()

	gen.Run(ctx, generatorListing("SKU-1", 100), rule)

	repriced := gen.Run(ctx, generatorListing("SKU-1", 75), rule)
	if repriced.Outcome != OutcomeGenerated {
		t.Errorf("Expected fresh generation after price change, got %s", repriced.Outcome)
	}
	if model.callCount() != 2 {
		t.Errorf("Expected 2 model calls after reprice, got %d", model.callCount())
	}
}

func TestGenerator_ModelFailureDoesNotConsumeQuota(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("provider is down")}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, store := newTestGenerator(model, clock)

	rule := generatedRule("gen", 5, "{{title}} still {{discount}}% off")
	ctx := context.Background()

	result := gen.Run(ctx, generatorListing("SKU-1", 100), rule)
	if result.Outcome != OutcomeFallbackModel {
		t.Errorf("Expected model fallback outcome, got %s", result.Outcome)
	}
	if strings.TrimSpace(result.Text) == "" {
		t.Error("Fallback text must never be empty")
	}

	used, _ := store.Current(ctx, QuotaKey("gen", clock.Now()))
	if used != 0 {
		t.Errorf("Failed model call must not consume quota: expected 0, got %d", used)
	}
}

func TestGenerator_DayRolloverResetsQuota(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)}
	gen, _ := newTestGenerator(model, clock)

	rule := generatedRule("gen", 1, "")
	ctx := context.Background()

	gen.Run(ctx, generatorListing("SKU-1", 100), rule)

	blocked := gen.Run(ctx, generatorListing("SKU-2", 80), rule)
	if blocked.Outcome != OutcomeFallbackQuota {
		t.Fatalf("Expected quota fallback before rollover, got %s", blocked.Outcome)
	}

	clock.Advance(2 * time.Hour) // crosses midnight UTC

	fresh := gen.Run(ctx, generatorListing("SKU-3", 60), rule)
	if fresh.Outcome != OutcomeGenerated {
		t.Errorf("Expected generation after day rollover, got %s", fresh.Outcome)
	}
}

func TestGenerator_ConcurrentCallsRespectQuota(t *testing.T) {
	model := &fakeModel{text: "fresh copy"}
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	gen, store := newTestGenerator(model, clock)

	rule := generatedRule("gen", 1, "")
	ctx := context.Background()

	// Distinct listings so every call misses the cache and races for the
	// single remaining quota slot.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gen.Run(ctx, generatorListing(fmt.Sprintf("SKU-%d", i), float64(50+i)), rule)
		}(i)
	}
	wg.Wait()

	if model.callCount() != 1 {
		t.Errorf("Expected exactly 1 model call with a single quota slot, got %d", model.callCount())
	}

	used, _ := store.Current(ctx, QuotaKey("gen", clock.Now()))
	if used != 1 {
		t.Errorf("Expected counter exactly at the quota, got %d", used)
	}
}

func TestFingerprint_ChangesWithInputs(t *testing.T) {
	base := generatorListing("SKU-1", 100)

	repriced := base
	repriced.Price = 75

	retitled := base
	retitled.Title = "Another Product"

	if Fingerprint(base, "style", "model") == Fingerprint(repriced, "style", "model") {
		t.Error("Expected price change to change the fingerprint")
	}
	if Fingerprint(base, "style", "model") == Fingerprint(retitled, "style", "model") {
		t.Error("Expected title change to change the fingerprint")
	}
	if Fingerprint(base, "style", "model") == Fingerprint(base, "other style", "model") {
		t.Error("Expected style change to change the fingerprint")
	}
	if Fingerprint(base, "style", "model") != Fingerprint(base, "style", "model") {
		t.Error("Expected fingerprint to be stable for identical inputs")
	}
}
