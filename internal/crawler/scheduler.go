package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/dispatcher"
	"github.com/JakeFAU/webtopdf/internal/metrics"
)

// Scheduler defaults.
const (
	DefaultBatchSize  = 10
	DefaultBatchPause = 100 * time.Millisecond
)

// SchedulerConfig holds the knobs of the batch loop.
type SchedulerConfig struct {
	BatchSize      int
	BatchPause     time.Duration
	DedupeFrontier bool
}

// Scheduler owns the frontier and the visited set for one run and drives
// render/extract batches over the worker pool until the frontier is empty.
// Only the goroutine calling Run touches frontier or visited state; workers
// return values and never mutate it.
type Scheduler struct {
	scope     Scope
	renderer  PageRenderer
	extractor LinkExtractor
	pool      *dispatcher.Pool
	cfg       SchedulerConfig
	logger    *zap.Logger

	onAdmit func(batch []string)
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithAdmitHook registers fn to observe every admitted batch before it is processed.
func WithAdmitHook(fn func(batch []string)) SchedulerOption {
	return func(s *Scheduler) {
		s.onAdmit = fn
	}
}

// NewScheduler builds a Scheduler. Zero config values fall back to the defaults.
func NewScheduler(
	scope Scope,
	renderer PageRenderer,
	extractor LinkExtractor,
	pool *dispatcher.Pool,
	cfg SchedulerConfig,
	logger *zap.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		scope:     scope,
		renderer:  renderer,
		extractor: extractor,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run crawls from the scope seed until the frontier is exhausted. It has no
// overall deadline; a cancelled ctx makes fetches fail fast, which stops
// frontier growth and lets the loop drain.
func (s *Scheduler) Run(ctx context.Context) CrawlStats {
	frontier := NewFrontier(s.cfg.DedupeFrontier)
	visited := NewVisitedSet()
	frontier.Push(s.scope.Seed())

	var stats CrawlStats
	for frontier.Len() > 0 {
		batch := s.admit(frontier, visited)
		if len(batch) == 0 {
			continue
		}
		stats.Batches++
		if s.onAdmit != nil {
			s.onAdmit(append([]string(nil), batch...))
		}
		s.logger.Info("processing batch",
			zap.Int("batch", stats.Batches),
			zap.Int("size", len(batch)),
			zap.Int("frontier", frontier.Len()),
			zap.Int("visited", visited.Len()),
		)
		start := time.Now()

		dispatcher.MapWithProgress(ctx, s.pool, batch, s.renderer.Render, func(done, total int, res RenderResult) {
			if res.OK {
				stats.Rendered++
			}
			s.logger.Debug("page processed",
				zap.Int("batch", stats.Batches),
				zap.Int("done", done),
				zap.Int("total", total),
				zap.String("url", res.URL),
				zap.Bool("ok", res.OK),
			)
		})

		linkSets := dispatcher.Map(ctx, s.pool, batch, s.extractor.Extract)
		enqueued := 0
		for _, links := range linkSets {
			for _, link := range links {
				if visited.Has(link) {
					continue
				}
				if frontier.Push(link) {
					enqueued++
				}
			}
		}
		metrics.ObserveEnqueued(enqueued)
		metrics.ObserveBatch(time.Since(start))

		pause(ctx, s.cfg.BatchPause)
	}

	stats.Visited = visited.Len()
	s.logger.Info("crawl finished",
		zap.Int("visited", stats.Visited),
		zap.Int("rendered", stats.Rendered),
		zap.Int("batches", stats.Batches),
	)
	return stats
}

// admit pops up to BatchSize URLs and marks each admitted one visited before
// any work starts, so a URL can never land in two batches.
func (s *Scheduler) admit(frontier *Frontier, visited *VisitedSet) []string {
	batch := make([]string, 0, s.cfg.BatchSize)
	for len(batch) < s.cfg.BatchSize {
		next, ok := frontier.Pop()
		if !ok {
			break
		}
		if !s.scope.Allows(next) || !visited.MarkIfNew(next) {
			continue
		}
		batch = append(batch, next)
	}
	return batch
}
