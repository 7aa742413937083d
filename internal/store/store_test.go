package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"calendar-sync-backend/internal/db"
	"calendar-sync-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB opens a migrated in-memory database private to the calling test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func int32Ptr(v int32) *int32 { return &v }

func event(id int64, room string, start time.Time, status model.EventStatus) model.Event {
	return model.Event{
		ID:                id,
		RoomCode:          room,
		StartAt:           start,
		EndAt:             start.Add(90 * time.Minute),
		TitleDE:           fmt.Sprintf("Veranstaltung %d", id),
		TitleEN:           fmt.Sprintf("Event %d", id),
		StpType:           "VO",
		EntryType:         model.EntryTypeLecture,
		DetailedEntryType: "Abhaltung",
		Status:            status,
	}
}

func eventIDs(t *testing.T, gormDB *gorm.DB, table, room string) []int64 {
	var ids []int64
	q := gormDB.Table(table).Order("id")
	if room != "" {
		q = q.Where("room_code = ?", room)
	}
	require.NoError(t, q.Pluck("id", &ids).Error)
	return ids
}

var base = time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC)

func TestGormStore_ListScrapeTargets(t *testing.T) {
	gormDB := newSQLiteDB(t)
	rooms := []model.Room{
		{Key: "A.01", Name: "Hörsaal 1", ExternalID: int32Ptr(2)},
		{Key: "B.02", Name: "Lager"},
		{Key: "C.03", Name: "Seminarraum", ExternalID: int32Ptr(1)},
		{Key: "0.99", Name: "Foyer", ExternalID: int32Ptr(5)},
	}
	require.NoError(t, gormDB.Create(&rooms).Error)

	s := NewGormStore(gormDB, zap.NewNop())
	targets, err := s.ListScrapeTargets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ScrapeTarget{
		{Key: "0.99", ExternalID: 5},
		{Key: "A.01", ExternalID: 2},
		{Key: "C.03", ExternalID: 1},
	}, targets, "rooms without an external id must not be scraped")
}

func TestGormStore_GetRoom(t *testing.T) {
	gormDB := newSQLiteDB(t)
	require.NoError(t, gormDB.Create(&model.Room{Key: "A.01", Name: "Hörsaal 1", ExternalID: int32Ptr(7)}).Error)
	s := NewGormStore(gormDB, zap.NewNop())

	room, err := s.GetRoom(context.Background(), "A.01")
	require.NoError(t, err)
	assert.Equal(t, "Hörsaal 1", room.Name)
	require.NotNil(t, room.ExternalID)
	assert.Equal(t, int32(7), *room.ExternalID)

	_, err = s.GetRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_GetEvents(t *testing.T) {
	gormDB := newSQLiteDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, model.TableCalendar, []model.Event{
		event(1, "R1", base, model.StatusConfirmed),
		event(2, "R1", base.Add(24*time.Hour), model.StatusConfirmed),
		event(3, "R1", base.Add(72*time.Hour), model.StatusConfirmed),
		event(4, "R2", base.Add(24*time.Hour), model.StatusConfirmed),
	})
	require.NoError(t, err)

	events, err := s.GetEvents(ctx, model.TableCalendar, "R1", base.Add(time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].ID, "an event overlapping the window start is included")
	assert.Equal(t, int64(2), events[1].ID)

	_, err = s.GetEvents(ctx, "users", "R1", base, base)
	assert.Error(t, err)
}

func TestGormStore_ReplaceRoomEvents(t *testing.T) {
	gormDB := newSQLiteDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, model.TableCalendar, []model.Event{
		event(1, "R1", base, model.StatusConfirmed),
		event(2, "R1", base.Add(time.Hour), model.StatusConfirmed),
		event(3, "R2", base, model.StatusConfirmed),
		event(4, "R1", base.AddDate(0, 6, 0), model.StatusConfirmed),
		event(5, "R1", base.AddDate(0, 0, -1), model.StatusConfirmed),
	})
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	s = NewGormStore(gormDB, zap.New(core))

	from := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	inserted, err := s.ReplaceRoomEvents(ctx, model.TableCalendar, "R1", from, from.AddDate(0, 0, 7), []model.Event{
		event(10, "R1", base, model.StatusPlanned),
		event(11, "R1", base.Add(time.Hour), model.StatusPlanned),
		event(11, "R1", base.Add(time.Hour), model.StatusPlanned),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, inserted, "a repeated event id is skipped without failing the room")
	assert.Equal(t, []int64{4, 5, 10, 11}, eventIDs(t, gormDB, model.TableCalendar, "R1"), "rows outside the range are kept")
	assert.Equal(t, []int64{3}, eventIDs(t, gormDB, model.TableCalendar, "R2"), "other rooms are untouched")

	skipped := logs.FilterMessage("event id already present, skipping").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(11), skipped[0].ContextMap()["event"])
}

func TestGormStore_ReplaceRoomEvents_FailingInsertIsSkipped(t *testing.T) {
	gormDB := newSQLiteDB(t)
	require.NoError(t, gormDB.Exec(`CREATE TRIGGER reject_event BEFORE INSERT ON calendar
		WHEN NEW.id = 12 BEGIN SELECT RAISE(ABORT, 'event rejected'); END`).Error)
	core, logs := observer.New(zap.DebugLevel)
	s := NewGormStore(gormDB, zap.New(core))
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, model.TableCalendar, []model.Event{event(1, "R1", base, model.StatusConfirmed)})
	require.NoError(t, err)

	from := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	inserted, err := s.ReplaceRoomEvents(ctx, model.TableCalendar, "R1", from, from.AddDate(0, 0, 7), []model.Event{
		event(11, "R1", base, model.StatusConfirmed),
		event(12, "R1", base.Add(time.Hour), model.StatusConfirmed),
		event(13, "R1", base.Add(2*time.Hour), model.StatusConfirmed),
	})
	require.NoError(t, err, "a rejected event does not fail the room")

	assert.Equal(t, 2, inserted)
	assert.Equal(t, []int64{11, 13}, eventIDs(t, gormDB, model.TableCalendar, "R1"), "the delete and the other inserts are committed")

	ignored := logs.FilterMessage("ignoring event insert").All()
	require.Len(t, ignored, 1)
	assert.Equal(t, zap.WarnLevel, ignored[0].Level)
	assert.Equal(t, int64(12), ignored[0].ContextMap()["event"])
	assert.Contains(t, ignored[0].ContextMap()["error"], "event rejected")
}

func TestGormStore_ReplaceRoomEvents_DeleteFailureRollsBack(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectBegin()
	from := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM calendar WHERE room_code = $1 AND start_at >= $2 AND start_at < $3`)).
		WithArgs("R1", from, to).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	inserted, err := s.ReplaceRoomEvents(context.Background(), model.TableCalendar, "R1", from, to, []model.Event{
		event(10, "R1", base, model.StatusPlanned),
	})

	assert.Error(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Promote(t *testing.T) {
	gormDB := newSQLiteDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, model.TableCalendar, []model.Event{
		event(99, "R1", base, model.StatusConfirmed),
	})
	require.NoError(t, err)
	_, err = s.InsertEvents(ctx, model.TableCalendarScrape, []model.Event{
		event(1, "R1", base, model.StatusConfirmed),
		event(2, "R1", base.Add(time.Hour), model.StatusPlanned),
		event(3, "R1", base.Add(2*time.Hour), model.StatusCancelled),
		event(4, "R2", base, model.StatusTentative),
	})
	require.NoError(t, err)

	promoted, err := s.Promote(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), promoted)
	assert.Equal(t, []int64{1, 2}, eventIDs(t, gormDB, model.TableCalendar, ""))
	assert.Len(t, eventIDs(t, gormDB, model.TableCalendarScrape, ""), 4, "staging is left as is")

	var promotedEvent model.Event
	require.NoError(t, gormDB.Table(model.TableCalendar).Where("id = ?", 2).First(&promotedEvent).Error)
	assert.Equal(t, "Event 2", promotedEvent.TitleEN)
	assert.Equal(t, model.StatusPlanned, promotedEvent.Status)
	assert.True(t, promotedEvent.StartAt.Equal(base.Add(time.Hour)))
}

func TestGormStore_Promote_Statements(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM calendar`)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO calendar (id, room_code, start_at`)).
		WithArgs("fix", "geplant").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	promoted, err := s.Promote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ClearTable(t *testing.T) {
	gormDB := newSQLiteDB(t)
	s := NewGormStore(gormDB, zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, model.TableCalendarScrape, []model.Event{
		event(1, "R1", base, model.StatusConfirmed),
		event(2, "R2", base, model.StatusConfirmed),
	})
	require.NoError(t, err)
	_, err = s.InsertEvents(ctx, model.TableCalendar, []model.Event{
		event(1, "R1", base, model.StatusConfirmed),
	})
	require.NoError(t, err)

	require.NoError(t, s.ClearTable(ctx, model.TableCalendarScrape))
	assert.Empty(t, eventIDs(t, gormDB, model.TableCalendarScrape, ""))
	assert.Equal(t, []int64{1}, eventIDs(t, gormDB, model.TableCalendar, ""))

	assert.Error(t, s.ClearTable(ctx, "rooms"))
	assert.NoError(t, s.Ping(ctx))
}
