package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"calendar-sync-backend/internal/calendar"
	"calendar-sync-backend/internal/store"
)

// CalendarService answers calendar lookups for a room.
type CalendarService interface {
	Events(ctx context.Context, roomID string, startAfter, endBefore time.Time) (*calendar.Calendar, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	calendar  CalendarService
	store     store.Store
	sourceURL string
	log       *zap.Logger
}

// NewHandler creates a new API handler. sourceURL is shown on the status page.
func NewHandler(cal CalendarService, s store.Store, sourceURL string, log *zap.Logger) *Handler {
	return &Handler{
		calendar:  cal,
		store:     s,
		sourceURL: sourceURL,
		log:       log.Named("api"),
	}
}
