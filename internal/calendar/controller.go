// Package calendar decides per request whether a room's calendar is served from
// the store or refreshed from the upstream first.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/metrics"
	"calendar-sync-backend/internal/model"
	"calendar-sync-backend/internal/store"
)

var (
	ErrNotFound             = errors.New("room not found")
	ErrStore                = errors.New("could not read calendar from store")
	ErrStaleDataUnavailable = errors.New("calendar is stale and the upstream is unavailable")
	ErrNoExternalID         = errors.New("room has no upstream id")
)

// Calendar is the answer to a calendar lookup.
type Calendar struct {
	Events      []model.Event `json:"events"`
	LastSync    time.Time     `json:"last_sync"`
	CalendarURL string        `json:"calendar_url"`
}

// Controller serves room calendars, refetching rooms whose last sync is too old.
type Controller struct {
	store         store.Store
	refetcher     *Refetcher
	freshness     *FreshnessRecord
	refetchAfter  time.Duration
	staleFallback time.Duration
	urlTemplate   string
	metrics       *metrics.Metrics
	log           *zap.Logger
	now           func() time.Time
}

// NewController creates a controller. The freshness record is owned by the caller
// and may be shared.
func NewController(st store.Store, refetcher *Refetcher, freshness *FreshnessRecord, cfg config.CalendarConfig, urlTemplate string, m *metrics.Metrics, log *zap.Logger) *Controller {
	return &Controller{
		store:         st,
		refetcher:     refetcher,
		freshness:     freshness,
		refetchAfter:  cfg.RefetchAfter(),
		staleFallback: cfg.StaleFallback(),
		urlTemplate:   urlTemplate,
		metrics:       m,
		log:           log.Named("calendar"),
		now:           time.Now,
	}
}

// Events returns the events of a room intersecting [startAfter, endBefore).
func (c *Controller) Events(ctx context.Context, roomID string, startAfter, endBefore time.Time) (*Calendar, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	cal := &Calendar{CalendarURL: c.calendarURL(room)}
	lastSync := c.freshness.Get(roomID)
	now := c.now()

	if now.Sub(lastSync) <= c.refetchAfter {
		c.observe("store")
		return c.fromStore(ctx, cal, roomID, lastSync, startAfter, endBefore)
	}

	syncedAt, err := c.refetcher.Refetch(ctx, room, startAfter, endBefore)
	switch {
	case err == nil:
		c.freshness.Set(roomID, syncedAt)
		c.observe("refetch")
		return c.fromStore(ctx, cal, roomID, syncedAt, startAfter, endBefore)
	case errors.Is(err, ErrNoExternalID):
		// Nothing to refetch. Whatever the store holds is as fresh as it gets.
		c.observe("store")
		return c.fromStore(ctx, cal, roomID, lastSync, startAfter, endBefore)
	case now.Sub(lastSync) <= c.staleFallback:
		c.log.Warn("refetch failed, serving stored calendar",
			zap.String("room", roomID), zap.Time("last_sync", lastSync), zap.Error(err))
		c.observe("fallback")
		return c.fromStore(ctx, cal, roomID, lastSync, startAfter, endBefore)
	default:
		c.log.Error("refetch failed and stored calendar is too old",
			zap.String("room", roomID), zap.Time("last_sync", lastSync), zap.Error(err))
		c.observe("unavailable")
		return nil, fmt.Errorf("%w: %w", ErrStaleDataUnavailable, err)
	}
}

func (c *Controller) fromStore(ctx context.Context, cal *Calendar, roomID string, lastSync, startAfter, endBefore time.Time) (*Calendar, error) {
	events, err := c.store.GetEvents(ctx, model.TableCalendar, roomID, startAfter, endBefore)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	cal.Events = events
	cal.LastSync = lastSync
	return cal, nil
}

func (c *Controller) calendarURL(room *model.Room) string {
	var id int32
	if room.ExternalID != nil {
		id = *room.ExternalID
	}
	return fmt.Sprintf(c.urlTemplate, id)
}

func (c *Controller) observe(path string) {
	if c.metrics != nil {
		c.metrics.CalendarRequests.WithLabelValues(path).Inc()
	}
}
