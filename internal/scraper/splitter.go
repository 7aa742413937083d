package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"calendar-sync-backend/internal/model"
	"calendar-sync-backend/internal/upstream"
)

// EventFetcher fetches the events of one room for an inclusive date range.
type EventFetcher interface {
	FetchEvents(ctx context.Context, roomKey string, externalID int32, from, to time.Time) ([]model.Event, error)
}

// EventWriter persists fetched events.
type EventWriter interface {
	InsertEvents(ctx context.Context, table string, events []model.Event) (int, error)
}

// Result summarizes the scrape of one top-level order.
type Result struct {
	// Events is the number of events fetched successfully, including those of
	// sub-ranges of a degraded order.
	Events int
	// Degraded is set when the upstream asked for a smaller range at least once.
	Degraded bool
}

// Splitter fetches an order and bisects it whenever the upstream signals that
// the range was too large, down to single days.
type Splitter struct {
	fetcher EventFetcher
	writer  EventWriter
	table   string
	delay   time.Duration
	log     *zap.Logger
}

// NewSplitter creates a splitter writing into table and pausing delay after every upstream call.
func NewSplitter(fetcher EventFetcher, writer EventWriter, table string, delay time.Duration, log *zap.Logger) *Splitter {
	return &Splitter{fetcher: fetcher, writer: writer, table: table, delay: delay, log: log}
}

// Scrape works through the order breadth first: each round requests every
// pending range once and queues the halves of ranges that must be retried smaller.
func (s *Splitter) Scrape(ctx context.Context, order ScrapeOrder) Result {
	var res Result
	queue := []ScrapeOrder{order}

	for len(queue) > 0 {
		var next []ScrapeOrder
		for _, work := range queue {
			events, fetchErr := s.fetcher.FetchEvents(ctx, work.Key, work.ExternalID, work.From, work.To)

			switch upstream.Classify(fetchErr) {
			case upstream.OutcomeSuccess:
				res.Events += len(events)
				if _, err := s.writer.InsertEvents(ctx, s.table, events); err != nil {
					s.log.Error("could not store scraped events",
						zap.Stringer("order", work), zap.Int("events", len(events)), zap.Error(err))
				}
			case upstream.OutcomeRetrySmaller:
				res.Degraded = true
				lower, upper, splitErr := work.Split()
				if splitErr != nil {
					s.log.Warn("the following scrape order cannot be fulfilled",
						zap.Stringer("order", work), zap.Error(fetchErr))
					break
				}
				next = append(next, lower, upper)
			case upstream.OutcomeUnretryable:
				s.log.Debug("upstream rejected scrape order", zap.Stringer("order", work), zap.Error(fetchErr))
			}

			// Pause after every call so the upstream does not block us.
			if err := sleep(ctx, s.delay); err != nil {
				return res
			}
		}
		queue = next
	}
	return res
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
