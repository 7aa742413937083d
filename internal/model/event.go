package model

import "time"

// Table names holding events. Both share the Event schema.
const (
	TableCalendar       = "calendar"
	TableCalendarScrape = "calendar_scrape"
)

// EntryType classifies what an event is used for.
type EntryType string

const (
	EntryTypeLecture  EntryType = "lecture"
	EntryTypeExercise EntryType = "exercise"
	EntryTypeExam     EntryType = "exam"
	EntryTypeBarred   EntryType = "barred"
	EntryTypeOther    EntryType = "other"
)

// EventStatus is the planning state reported by the upstream for an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "fix"
	StatusPlanned   EventStatus = "geplant"
	StatusTentative EventStatus = "vorlaeufig"
	StatusCancelled EventStatus = "abgesagt"
)

// Promotable reports whether staged events with this status are copied to production.
func (s EventStatus) Promotable() bool {
	return s == StatusConfirmed || s == StatusPlanned
}

// PromotableStatuses lists every status for which Promotable is true.
func PromotableStatuses() []EventStatus {
	return []EventStatus{StatusConfirmed, StatusPlanned}
}

// Event is one calendar entry of a room.
type Event struct {
	ID                int64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RoomCode          string      `gorm:"size:64;not null" json:"room_code"`
	StartAt           time.Time   `gorm:"not null" json:"start_at"`
	EndAt             time.Time   `gorm:"not null" json:"end_at"`
	TitleDE           string      `gorm:"column:stp_title_de;not null" json:"stp_title_de"`
	TitleEN           string      `gorm:"column:stp_title_en;not null" json:"stp_title_en"`
	StpType           string      `gorm:"not null" json:"stp_type"`
	EntryType         EntryType   `gorm:"size:16;not null" json:"entry_type"`
	DetailedEntryType string      `gorm:"not null" json:"detailed_entry_type"`
	Status            EventStatus `gorm:"size:16;not null" json:"-"`
}

// Intersects reports whether the event overlaps the half open window [startAfter, endBefore).
func (e Event) Intersects(startAfter, endBefore time.Time) bool {
	return e.StartAt.Before(endBefore) && e.EndAt.After(startAfter)
}

// EventColumns is the column list shared by the production and staging tables.
var EventColumns = []string{
	"id", "room_code", "start_at", "end_at", "stp_title_de", "stp_title_en",
	"stp_type", "entry_type", "detailed_entry_type", "status",
}
