package copy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dealpress/dealpress/app/cache"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/llm"
	"github.com/dealpress/dealpress/app/rules"
)

type Outcome string

const (
	OutcomeTemplate      Outcome = "template"
	OutcomeCached        Outcome = "cached"
	OutcomeGenerated     Outcome = "generated"
	OutcomeFallbackQuota Outcome = "fallback_quota"
	OutcomeFallbackModel Outcome = "fallback_model"
)

// Result is the publishable copy for one (listing, rule) pair. Outcome
// records how the text was produced so operators can see how often
// generation degraded, and which way.
type Result struct {
	Text    string
	Outcome Outcome
}

// Clock is injected so tests can simulate quota day rollover.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Generator produces publishable copy for a matched (listing, rule) pair.
// Generated copy is cached by content fingerprint and gated by an atomic
// per-rule daily quota; every degraded path falls back to template or
// default text rather than blocking the pipeline.
type Generator struct {
	copyCache    cache.CopyCache
	quota        cache.QuotaStore
	model        llm.CompletionClient
	renderer     *Renderer
	clock        Clock
	ttl          time.Duration
	modelTimeout time.Duration
}

func NewGenerator(copyCache cache.CopyCache, quota cache.QuotaStore,
	model llm.CompletionClient, renderer *Renderer, clock Clock,
	ttl, modelTimeout time.Duration) *Generator {
	return &Generator{
		copyCache:    copyCache,
		quota:        quota,
		model:        model,
		renderer:     renderer,
		clock:        clock,
		ttl:          ttl,
		modelTimeout: modelTimeout,
	}
}

func (g *Generator) Run(ctx context.Context, l deal.Listing, rule *rules.Rule) Result {
	if rule.Copy.Mode == rules.ModeTemplate {
		return Result{
			Text:    g.renderer.Run(rule.Copy.Template, l),
			Outcome: OutcomeTemplate,
		}
	}

	fingerprint := Fingerprint(l, rule.Copy.Style, rule.Copy.Model)
	cacheKey := CacheKey(rule.Name, l.SKU, fingerprint)

	cached, hit, err := g.copyCache.Get(ctx, cacheKey)
	if err != nil {
		slog.Warn("Copy cache read failed, treating as miss", "rule", rule.Name, "sku", l.SKU, "error", err)
	}
	if hit {
		return Result{Text: cached, Outcome: OutcomeCached}
	}

	quotaKey := QuotaKey(rule.Name, g.clock.Now())
	acquired, err := g.quota.TryAcquire(ctx, quotaKey, rule.DailyQuota())
	if err != nil {
		slog.Error("Quota store unavailable, falling back", "rule", rule.Name, "sku", l.SKU, "error", err)
		return g.fallback(l, rule, OutcomeFallbackModel)
	}
	if !acquired {
		slog.Info("Daily generation quota exhausted, falling back", "rule", rule.Name, "sku", l.SKU, "quota", rule.DailyQuota())
		return g.fallback(l, rule, OutcomeFallbackQuota)
	}

	modelCtx, cancel := context.WithTimeout(ctx, g.modelTimeout)
	defer cancel()

	text, err := g.model.Complete(modelCtx, rule.Copy.Model, g.buildPrompt(l, rule))
	if err != nil {
		// Failed calls must not consume quota: hand the reserved slot back.
		if releaseErr := g.quota.Release(ctx, quotaKey); releaseErr != nil {
			slog.Error("Failed to release quota slot", "rule", rule.Name, "key", quotaKey, "error", releaseErr)
		}
		slog.Warn("Model call failed, falling back", "rule", rule.Name, "sku", l.SKU, "model", rule.Copy.Model, "error", err)
		return g.fallback(l, rule, OutcomeFallbackModel)
	}

	if err := g.copyCache.Set(ctx, cacheKey, text, g.ttl); err != nil {
		slog.Warn("Copy cache write failed", "rule", rule.Name, "sku", l.SKU, "error", err)
	}

	return Result{Text: text, Outcome: OutcomeGenerated}
}

func (g *Generator) fallback(l deal.Listing, rule *rules.Rule, outcome Outcome) Result {
	if rule.Copy.Template != "" {
		return Result{
			Text:    g.renderer.Run(rule.Copy.Template, l),
			Outcome: outcome,
		}
	}
	return Result{Text: g.defaultCopy(l), Outcome: outcome}
}

// defaultCopy is the deterministic last-resort text used when a generated
// rule has no template configured.
func (g *Generator) defaultCopy(l deal.Listing) string {
	title := l.Title
	if title == "" {
		title = l.SKU
	}
	text := fmt.Sprintf("%s - now %d%% off", title, l.DiscountPct)
	if link := g.renderer.Link(l); link != "" {
		text += " " + link
	}
	return text
}

func (g *Generator) buildPrompt(l deal.Listing, rule *rules.Rule) string {
	var b strings.Builder
	b.WriteString("Write a short social media post promoting this deal.\n")
	fmt.Fprintf(&b, "Product: %s\n", l.Title)
	fmt.Fprintf(&b, "Price: %.2f (was %.2f, %d%% off)\n", l.Price, l.OriginalPrice, l.DiscountPct)
	if l.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", l.Category)
	}
	if link := g.renderer.Link(l); link != "" {
		fmt.Fprintf(&b, "Link to include: %s\n", link)
	}
	if rule.Copy.Style != "" {
		fmt.Fprintf(&b, "Style: %s\n", rule.Copy.Style)
	}
	b.WriteString("Reply with the post text only.")
	return b.String()
}
