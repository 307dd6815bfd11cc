package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dealpress/dealpress/app/copy"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/publish"
	"github.com/dealpress/dealpress/app/rules"
)

// ProcessListingTask runs the downstream pipeline for one listing: score,
// match against active rules, then generate and dispatch per matched rule.
// The per-rule pipelines are independent and run concurrently; the copy
// cache and quota counters are the only shared state and guard themselves.
type ProcessListingTask struct {
	Task
	listing    deal.Listing
	ruleCache  *rules.Cache
	scorer     *deal.Scorer
	matcher    *rules.Matcher
	generator  *copy.Generator
	dispatcher *publish.Dispatcher
}

func NewProcessListingTask(listing deal.Listing, ruleCache *rules.Cache,
	scorer *deal.Scorer, matcher *rules.Matcher,
	generator *copy.Generator, dispatcher *publish.Dispatcher) *ProcessListingTask {
	return &ProcessListingTask{
		Task:       NewTask(TaskTypeProcessListing, listing.SKU),
		listing:    listing,
		ruleCache:  ruleCache,
		scorer:     scorer,
		matcher:    matcher,
		generator:  generator,
		dispatcher: dispatcher,
	}
}

func (t *ProcessListingTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	score := t.scorer.Score(t.listing)

	matched := t.matcher.Run(t.listing, score, t.ruleCache.GetEnabledRules())
	if len(matched) == 0 {
		// The common case: nothing to publish for this listing.
		slog.Debug("No rules matched", "sku", t.listing.SKU, "score", score)
		return nil
	}

	slog.Debug("Rules matched", "sku", t.listing.SKU, "score", score, "rules", len(matched))

	var wg sync.WaitGroup
	for _, rule := range matched {
		wg.Add(1)
		go func(rule *rules.Rule) {
			defer wg.Done()
			t.runRule(ctx, rule, score)
		}(rule)
	}
	wg.Wait()

	slog.Info("Task completed",
		"type", "ProcessListing",
		"sku", t.listing.SKU,
		"duration", t.GetDuration(),
		"score", score,
		"matched", len(matched))

	return nil
}

func (t *ProcessListingTask) runRule(ctx context.Context, rule *rules.Rule, score int) {
	result := t.generator.Run(ctx, t.listing, rule)

	slog.Debug("Copy ready", "rule", rule.Name, "sku", t.listing.SKU, "outcome", string(result.Outcome))

	attempts, err := t.dispatcher.Run(ctx, result.Text, t.listing, rule)
	if err != nil {
		slog.Error("Dispatch rejected", "rule", rule.Name, "sku", t.listing.SKU, "error", err)
		return
	}

	succeeded := 0
	for _, a := range attempts {
		if a.Success {
			succeeded++
		}
	}

	slog.Info("Rule pipeline finished",
		"rule", rule.Name,
		"sku", t.listing.SKU,
		"score", score,
		"copy_outcome", string(result.Outcome),
		"channels", len(attempts),
		"published", succeeded)
}
