package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/metrics"
	"calendar-sync-backend/internal/model"
	"calendar-sync-backend/internal/store"
)

// PassReport summarizes one scrape pass over all rooms.
type PassReport struct {
	Rooms         int
	Events        int
	DegradedRooms int
	Duration      time.Duration
	// EntryStats holds the events fetched per room.
	EntryStats Statistic
	// TimeStats holds the duration in seconds of every batch without a degraded room.
	TimeStats Statistic
}

// Service orchestrates the daily bulk scrape into the staging table and its promotion.
type Service struct {
	cfg      config.ScraperConfig
	store    store.Store
	splitter *Splitter
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the bulk scraper. Scraped events are written to the staging table.
func NewService(cfg config.ScraperConfig, st store.Store, fetcher EventFetcher, m *metrics.Metrics, log *zap.Logger) *Service {
	log = log.Named("scraper")
	return &Service{
		cfg:      cfg,
		store:    st,
		splitter: NewSplitter(fetcher, st, model.TableCalendarScrape, cfg.RequestDelay(), log),
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Run executes a cycle immediately and then once per interval until ctx is cancelled.
// The ticker drops ticks while a cycle is running, so cycles never overlap.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("scraper is disabled, not starting")
		return
	}
	s.log.Info("starting scraper service", zap.Duration("interval", s.cfg.Interval))

	s.RunCycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scraper service shutting down")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle clears the staging table, scrapes every room into it and promotes the result.
func (s *Service) RunCycle(ctx context.Context) {
	if err := s.store.ClearTable(ctx, model.TableCalendarScrape); err != nil {
		s.log.Error("failed to delete scraped results, skipping cycle", zap.Error(err))
		return
	}

	s.ScrapePass(ctx, s.cfg.YearSpan)

	if ctx.Err() != nil {
		s.log.Warn("scrape pass interrupted, staging is not promoted")
		return
	}
	if err := s.Promote(ctx); err != nil {
		s.log.Error("failed to promote scraped results", zap.Error(err))
	}
}

// ScrapePass scrapes every room with an external id into the staging table.
// Rooms are processed in concurrent batches of cfg.BatchSize, one batch at a time.
func (s *Service) ScrapePass(ctx context.Context, yearSpan int) PassReport {
	s.log.Info("starting scraping calendar entries")
	start := time.Now()
	var report PassReport

	targets, err := s.store.ListScrapeTargets(ctx)
	if err != nil {
		s.log.Error("error requesting all ids", zap.Error(err))
	}
	total := len(targets)

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	nextProgress := s.cfg.ProgressEvery

	for i := 0; i < total; i += batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := targets[i:min(i+batchSize, total)]
		batchStart := time.Now()
		year := s.now().UTC().Year()

		results := make([]Result, len(batch))
		var g errgroup.Group
		for j, target := range batch {
			order := NewScrapeOrder(target, year-yearSpan/2, yearSpan)
			g.Go(func() error {
				results[j] = s.splitter.Scrape(ctx, order)
				return nil
			})
		}
		_ = g.Wait()

		cleanBatch := true
		for _, r := range results {
			report.Rooms++
			report.Events += r.Events
			report.EntryStats.Push(float64(r.Events))
			if r.Degraded {
				report.DegradedRooms++
				cleanBatch = false
			}
			s.recordRoom(r)
		}
		// A batch that needed smaller retries would skew the timing a lot.
		if cleanBatch {
			report.TimeStats.PushDuration(time.Since(batchStart))
		}

		if nextProgress > 0 && report.Rooms >= nextProgress {
			elapsed := time.Since(start)
			s.log.Info("scrape progress",
				zap.String("percent", formatPercent(report.Rooms, total)),
				zap.Duration("avg_per_room", elapsed/time.Duration(report.Rooms)),
				zap.Duration("elapsed", elapsed),
				zap.Stringer("entries", &report.EntryStats),
				zap.Stringer("batch_seconds", &report.TimeStats))
			nextProgress += s.cfg.ProgressEvery
		}

		// Give the upstream a break between batches. Not being blocked is critical.
		if err := sleep(ctx, s.cfg.BatchDelay()); err != nil {
			break
		}
	}

	report.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.PassDuration.Observe(report.Duration.Seconds())
	}
	s.log.Info("finished scraping calendar entries",
		zap.Int("rooms", report.Rooms),
		zap.Int("events", report.Events),
		zap.Int("degraded_rooms", report.DegradedRooms),
		zap.Duration("duration", report.Duration))
	return report
}

// Promote replaces production with the promotable rows of the staging table.
func (s *Service) Promote(ctx context.Context) error {
	start := time.Now()
	promoted, err := s.store.Promote(ctx)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EventsPromoted.Set(float64(promoted))
	}
	s.log.Info("finished switching scraping results to production",
		zap.Int64("events", promoted), zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Service) recordRoom(r Result) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if r.Degraded {
		result = "degraded"
	}
	s.metrics.RoomsScraped.WithLabelValues(result).Inc()
	s.metrics.EventsScraped.Add(float64(r.Events))
}

func formatPercent(done, total int) string {
	if total == 0 {
		return "100.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(done)/float64(total)*100)
}
