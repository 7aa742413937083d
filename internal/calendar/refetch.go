package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/model"
	"calendar-sync-backend/internal/scraper"
	"calendar-sync-backend/internal/store"
)

// EventFetcher fetches the events of one room for an inclusive date range.
type EventFetcher interface {
	FetchEvents(ctx context.Context, roomKey string, externalID int32, from, to time.Time) ([]model.Event, error)
}

// Refetcher pulls the calendar of a single room into the production table.
type Refetcher struct {
	fetcher    EventFetcher
	store      store.Store
	pastDays   int
	futureDays int
	yearSpan   int
	log        *zap.Logger
	now        func() time.Time
}

// NewRefetcher creates a refetcher covering the window configured in cfg. Requested
// windows outside of it are fetched as long as they lie within the yearSpan years
// the bulk scraper covers.
func NewRefetcher(fetcher EventFetcher, st store.Store, cfg config.CalendarConfig, yearSpan int, log *zap.Logger) *Refetcher {
	return &Refetcher{
		fetcher:    fetcher,
		store:      st,
		pastDays:   cfg.RefetchPastDays,
		futureDays: cfg.RefetchFutureDays,
		yearSpan:   yearSpan,
		log:        log.Named("refetch"),
		now:        time.Now,
	}
}

// Range returns the inclusive days fetched for a request of [startAfter, endBefore).
// It is the configured window around today, widened to the requested days but never
// beyond the years of the bulk scrape.
func (r *Refetcher) Range(room *model.Room, startAfter, endBefore time.Time) (from, to time.Time) {
	now := r.now().UTC()
	today := midnight(now)
	from = today.AddDate(0, 0, -r.pastDays)
	to = today.AddDate(0, 0, r.futureDays)
	if r.yearSpan <= 0 {
		return from, to
	}

	var externalID int32
	if room.ExternalID != nil {
		externalID = *room.ExternalID
	}
	span := scraper.NewScrapeOrder(store.ScrapeTarget{Key: room.Key, ExternalID: externalID}, now.Year()-r.yearSpan/2, r.yearSpan)

	wantFrom := midnight(startAfter.UTC())
	wantTo := midnight(endBefore.UTC().Add(-time.Nanosecond))
	if wantFrom.Before(from) {
		from = maxTime(wantFrom, span.From)
	}
	if wantTo.After(to) {
		to = minTime(wantTo, span.To)
	}
	return from, to
}

// Refetch replaces the room's production events in the fetched range with a fresh
// upstream copy. Rows outside the range are kept. Only promotable events are written.
// The store is untouched when the upstream call fails.
func (r *Refetcher) Refetch(ctx context.Context, room *model.Room, startAfter, endBefore time.Time) (time.Time, error) {
	if room.ExternalID == nil {
		return time.Time{}, ErrNoExternalID
	}

	now := r.now().UTC()
	from, to := r.Range(room, startAfter, endBefore)

	fetched, err := r.fetcher.FetchEvents(ctx, room.Key, *room.ExternalID, from, to)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch calendar of room %q: %w", room.Key, err)
	}

	events := make([]model.Event, 0, len(fetched))
	for _, e := range fetched {
		if e.Status.Promotable() {
			events = append(events, e)
		}
	}

	inserted, err := r.store.ReplaceRoomEvents(ctx, model.TableCalendar, room.Key, from, to.AddDate(0, 0, 1), events)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to store calendar of room %q: %w", room.Key, err)
	}
	r.log.Debug("refetched room calendar",
		zap.String("room", room.Key),
		zap.Time("from", from), zap.Time("to", to),
		zap.Int("fetched", len(fetched)), zap.Int("stored", inserted))

	return now, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
