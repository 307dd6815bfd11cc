package api

import (
	"github.com/dealpress/dealpress/app/cache"
	"github.com/dealpress/dealpress/app/copy"
	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/rules"
	"github.com/dealpress/dealpress/app/tasks"
)

type Handler struct {
	listingRepo database.ListingRepository
	attemptRepo database.AttemptRepository
	ruleCache   *rules.Cache
	copyCache   cache.CopyCache
	quota       cache.QuotaStore
	clock       copy.Clock
	scheduler   tasks.TaskSchedulerInterface
}
