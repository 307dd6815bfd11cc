package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealpress/dealpress/app/cache"
	"github.com/dealpress/dealpress/app/copy"
	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/rules"
	"github.com/dealpress/dealpress/app/tasks"
)

func NewHandler(listingRepo database.ListingRepository, attemptRepo database.AttemptRepository,
	ruleCache *rules.Cache, copyCache cache.CopyCache, quota cache.QuotaStore,
	clock copy.Clock, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		listingRepo: listingRepo,
		attemptRepo: attemptRepo,
		ruleCache:   ruleCache,
		copyCache:   copyCache,
		quota:       quota,
		clock:       clock,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if listingCount, err := h.listingRepo.GetListingCount(); err == nil {
		health["listings"] = listingCount
	}

	health["loaded_rules"] = h.ruleCache.GetRuleCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if listingCount, err := h.listingRepo.GetListingCount(); err == nil {
		stats["listings"] = listingCount
	}

	if lastPoll, ok := h.scheduler.LastPollAt(); ok {
		stats["last_poll_at"] = lastPoll.In(time.Local).Format(time.RFC3339)
	}

	stats["rules"] = map[string]interface{}{
		"loaded":  h.ruleCache.GetRuleCount(),
		"enabled": len(h.ruleCache.GetEnabledRules()),
	}

	quotaUsage := map[string]interface{}{}
	for _, rule := range h.ruleCache.GetEnabledRules() {
		quotaKey := copy.QuotaKey(rule.Name, h.clock.Now())
		if used, err := h.quota.Current(c.Request.Context(), quotaKey); err == nil {
			quotaUsage[rule.Name] = map[string]interface{}{
				"used":  used,
				"quota": rule.DailyQuota(),
			}
		}
	}
	stats["quota_usage"] = quotaUsage

	if total, succeeded, failed, err := h.attemptRepo.GetAttemptStats(); err == nil {
		stats["publish_attempts"] = map[string]interface{}{
			"total":     total,
			"succeeded": succeeded,
			"failed":    failed,
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListRules(c *gin.Context) {
	loaded := h.ruleCache.GetRules()

	out := make([]map[string]interface{}, 0, len(loaded))
	for _, rule := range loaded {
		info := map[string]interface{}{
			"name":        rule.Name,
			"tenant":      rule.Tenant,
			"enabled":     rule.Settings.Enabled,
			"mode":        rule.Copy.Mode,
			"channels":    len(rule.Channels),
			"daily_quota": rule.DailyQuota(),
		}
		if rule.Priority != nil {
			info["priority"] = *rule.Priority
		}

		quotaKey := copy.QuotaKey(rule.Name, h.clock.Now())
		if used, err := h.quota.Current(c.Request.Context(), quotaKey); err == nil {
			info["quota_used_today"] = used
		}

		out = append(out, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"rules": out,
		"total": len(out),
	})
}

func (h *Handler) APIListListings(c *gin.Context) {
	listings, err := h.listingRepo.GetRecentListings(100)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_listings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"listings": listings,
		"total":    len(listings),
	})
}

// APIResetQuota clears today's generation counter for a rule. Administrative
// operation, out of the pipeline's hot path.
func (h *Handler) APIResetQuota(c *gin.Context) {
	name := c.Param("name")

	rule, err := h.ruleCache.GetRule(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	quotaKey := copy.QuotaKey(rule.Name, h.clock.Now())
	if err := h.quota.Reset(c.Request.Context(), quotaKey); err != nil {
		slog.Error("Failed to reset quota counter", "rule", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset quota counter"})
		return
	}

	slog.Info("Quota counter reset", "rule", name)
	c.JSON(http.StatusOK, gin.H{
		"rule":    name,
		"message": "Quota counter reset",
	})
}

// APIInvalidateCopyCache drops cached generated copy for a rule, optionally
// scoped to one listing via the sku query parameter. Used after a template
// or style directive changes and stale copy must be regenerated.
func (h *Handler) APIInvalidateCopyCache(c *gin.Context) {
	name := c.Param("name")

	rule, err := h.ruleCache.GetRule(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	prefix := copy.CacheKeyPrefix(rule.Name, c.Query("sku"))
	deleted, err := h.copyCache.DeletePrefix(c.Request.Context(), prefix)
	if err != nil {
		slog.Error("Failed to invalidate copy cache", "rule", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate copy cache"})
		return
	}

	slog.Info("Copy cache invalidated", "rule", name, "deleted", deleted)
	c.JSON(http.StatusOK, gin.H{
		"rule":    name,
		"deleted": deleted,
	})
}

func (h *Handler) APITriggerPoll(c *gin.Context) {
	if err := h.scheduler.EnqueuePoll(); err != nil {
		slog.Error("Failed to enqueue poll task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue poll task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Poll cycle enqueued"})
}
