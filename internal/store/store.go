package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"calendar-sync-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	GetRoom(ctx context.Context, key string) (*model.Room, error)
	GetEvents(ctx context.Context, table, roomKey string, startAfter, endBefore time.Time) ([]model.Event, error)
	ListScrapeTargets(ctx context.Context) ([]ScrapeTarget, error)
	ReplaceRoomEvents(ctx context.Context, table, roomKey string, from, to time.Time, events []model.Event) (int, error)
	InsertEvents(ctx context.Context, table string, events []model.Event) (int, error)
	ClearTable(ctx context.Context, table string) error
	Promote(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log *zap.Logger) Store {
	return &gormStore{db: db, log: log}
}

func checkTable(table string) error {
	if table != model.TableCalendar && table != model.TableCalendarScrape {
		return fmt.Errorf("unknown event table %q", table)
	}
	return nil
}

// GetRoom looks up a room by key.
func (s *gormStore) GetRoom(ctx context.Context, key string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %q: %w", key, err)
	}
	return &room, nil
}

// GetEvents returns the events of a room overlapping [startAfter, endBefore), ordered by start.
func (s *gormStore) GetEvents(ctx context.Context, table, roomKey string, startAfter, endBefore time.Time) ([]model.Event, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var events []model.Event
	err := s.db.WithContext(ctx).Table(table).
		Where("room_code = ? AND start_at < ? AND end_at > ?", roomKey, endBefore, startAfter).
		Order("start_at").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get events of room %q: %w", roomKey, err)
	}
	return events, nil
}

// ListScrapeTargets returns every room with an external id, ordered by key and external id.
// The order only makes scrape runs reproducible.
func (s *gormStore) ListScrapeTargets(ctx context.Context) ([]ScrapeTarget, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).
		Select("key", "external_id").
		Where("external_id IS NOT NULL").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "external_id"}}).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape targets: %w", err)
	}

	targets := make([]ScrapeTarget, 0, len(rooms))
	for _, r := range rooms {
		if r.ExternalID == nil {
			continue
		}
		targets = append(targets, ScrapeTarget{Key: r.Key, ExternalID: *r.ExternalID})
	}
	return targets, nil
}

// ReplaceRoomEvents deletes the rows of the room starting in [from, to) and inserts
// events in one transaction. Rows outside the range are kept.
// A failing delete rolls back; a failing insert only skips that event.
func (s *gormStore) ReplaceRoomEvents(ctx context.Context, table, roomKey string, from, to time.Time, events []model.Event) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var inserted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := "DELETE FROM " + table + " WHERE room_code = ? AND start_at >= ? AND start_at < ?"
		if err := tx.Exec(del, roomKey, from, to).Error; err != nil {
			s.log.Error("could not delete existing events", zap.String("room", roomKey), zap.Error(err))
			return fmt.Errorf("failed to delete events of room %q: %w", roomKey, err)
		}
		var err error
		inserted, err = s.insertEach(tx, table, events)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// InsertEvents adds events to a table without clearing it first.
// Rows whose id already exists are left untouched.
func (s *gormStore) InsertEvents(ctx context.Context, table string, events []model.Event) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	var inserted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = s.insertEach(tx, table, events)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// insertEach inserts events one by one, each under its own savepoint so that a
// rejected row does not abort the surrounding transaction.
func (s *gormStore) insertEach(tx *gorm.DB, table string, events []model.Event) (int, error) {
	const savepoint = "event_insert"
	inserted := 0
	for i := range events {
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return inserted, fmt.Errorf("failed to create savepoint: %w", err)
		}
		res := tx.Table(table).Clauses(clause.OnConflict{DoNothing: true}).Create(&events[i])
		if res.Error != nil {
			s.log.Warn("ignoring event insert",
				zap.Int64("event", events[i].ID),
				zap.String("room", events[i].RoomCode),
				zap.Int("index", i),
				zap.Int("total", len(events)),
				zap.Error(res.Error))
			if err := tx.RollbackTo(savepoint).Error; err != nil {
				return inserted, fmt.Errorf("failed to roll back to savepoint: %w", err)
			}
			continue
		}
		if res.RowsAffected == 0 {
			s.log.Warn("event id already present, skipping",
				zap.Int64("event", events[i].ID), zap.String("room", events[i].RoomCode))
			continue
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// ClearTable deletes every row of an event table.
func (s *gormStore) ClearTable(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// Promote replaces the production calendar with the promotable rows of the staging table.
func (s *gormStore) Promote(ctx context.Context) (int64, error) {
	statuses := make([]string, 0, 2)
	for _, st := range model.PromotableStatuses() {
		statuses = append(statuses, string(st))
	}
	cols := strings.Join(model.EventColumns, ", ")

	var promoted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + model.TableCalendar).Error; err != nil {
			return fmt.Errorf("failed to delete calendar: %w", err)
		}
		res := tx.Exec(
			"INSERT INTO "+model.TableCalendar+" ("+cols+") SELECT "+cols+
				" FROM "+model.TableCalendarScrape+" WHERE status IN ?", statuses)
		if res.Error != nil {
			return fmt.Errorf("failed to insert newly scraped values: %w", res.Error)
		}
		promoted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}

// Ping checks that the database answers queries.
func (s *gormStore) Ping(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("SELECT 1").Error
}
