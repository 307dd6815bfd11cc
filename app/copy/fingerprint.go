package copy

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/dealpress/dealpress/app/deal"
)

// Fingerprint hashes the copy-relevant listing fields together with the
// rule's style directive and model. A price change produces a new
// fingerprint, invalidating cached copy naturally; an unchanged listing and
// rule hit the cache.
func Fingerprint(l deal.Listing, style, model string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%.2f|%d|%s|%s",
		l.Title, l.Price, l.DiscountPct, style, model))
	return fmt.Sprintf("%x", h[:8])
}

func CacheKey(ruleName, sku, fingerprint string) string {
	return fmt.Sprintf("copy:%s:%s:%s", ruleName, sku, fingerprint)
}

// CacheKeyPrefix scopes cache invalidation to one rule, optionally narrowed
// to a single listing.
func CacheKeyPrefix(ruleName, sku string) string {
	if sku != "" {
		return fmt.Sprintf("copy:%s:%s:", ruleName, sku)
	}
	return fmt.Sprintf("copy:%s:", ruleName)
}

// QuotaKey identifies the (rule, calendar day) counter. The day comes from
// the injected clock, in UTC, so the quota window rolls over at midnight UTC
// and tests can simulate rollovers.
func QuotaKey(ruleName string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s", ruleName, now.UTC().Format("2006-01-02"))
}
