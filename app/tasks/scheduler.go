package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dealpress/dealpress/app/cfg"
	"github.com/dealpress/dealpress/app/copy"
	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/marketplace"
	"github.com/dealpress/dealpress/app/publish"
	"github.com/dealpress/dealpress/app/rules"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler drives the pipeline: a cron tick enqueues a marketplace poll,
// worker goroutines execute tasks from the queue, and each upserted listing
// fans out into its own processing task.
type Scheduler struct {
	listingRepo database.ListingRepository
	ruleCache   *rules.Cache
	source      marketplace.SourceClient
	scorer      *deal.Scorer
	matcher     *rules.Matcher
	generator   *copy.Generator
	dispatcher  *publish.Dispatcher
	query       marketplace.Query
	interval    int
	workerCount int
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	pollMu      sync.Mutex
	lastPollAt  time.Time
}

func NewScheduler(listingRepo database.ListingRepository, ruleCache *rules.Cache,
	source marketplace.SourceClient, scorer *deal.Scorer, matcher *rules.Matcher,
	generator *copy.Generator, dispatcher *publish.Dispatcher) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		listingRepo: listingRepo,
		ruleCache:   ruleCache,
		source:      source,
		scorer:      scorer,
		matcher:     matcher,
		generator:   generator,
		dispatcher:  dispatcher,
		query: marketplace.Query{
			Categories:  c.SourceCategories,
			MinDiscount: c.SourceMinDiscount,
			MinReviews:  c.SourceMinReviews,
		},
		interval:    c.PollInterval,
		workerCount: c.WorkerCount,
		cron:        cron.New(),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() error {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", s.interval), func() {
		if err := s.EnqueuePoll(); err != nil {
			slog.Warn("Failed to enqueue PollSourceTask", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "workers", s.workerCount, "poll_interval", s.interval)

	// Run one poll immediately so the pipeline is warm without waiting for
	// the first tick.
	if err := s.EnqueuePoll(); err != nil {
		slog.Warn("Failed to enqueue startup PollSourceTask", "error", err)
	}

	return nil
}

func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.cancel()
	s.wg.Wait()
	// The queue is left open: a sleeping retry goroutine may still enqueue
	// after shutdown, and a send to an undrained queue is harmless where a
	// send to a closed one would panic.
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) EnqueuePoll() error {
	task := NewPollSourceTask(s.source, s.query, s.listingRepo, s)
	return s.EnqueueTask(task)
}

// LastPollAt reports when the most recent poll cycle completed successfully.
func (s *Scheduler) LastPollAt() (time.Time, bool) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.lastPollAt, !s.lastPollAt.IsZero()
}

func (s *Scheduler) enqueueProcessListing(l deal.Listing) error {
	task := NewProcessListingTask(l, s.ruleCache, s.scorer, s.matcher, s.generator, s.dispatcher)
	return s.EnqueueTask(task)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err == nil && task.GetType() == TaskTypePollSource {
		s.pollMu.Lock()
		s.lastPollAt = time.Now()
		s.pollMu.Unlock()
	}

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
