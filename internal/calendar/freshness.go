package calendar

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// FreshnessRecord remembers when each room was last synced with the upstream.
// Entries live for the lifetime of the process, so a restart makes every room stale.
type FreshnessRecord struct {
	syncs *cache.Cache
}

// NewFreshnessRecord creates an empty record.
func NewFreshnessRecord() *FreshnessRecord {
	return &FreshnessRecord{syncs: cache.New(cache.NoExpiration, 0)}
}

// Get returns the last sync of a room, or the zero time if it was never synced.
func (f *FreshnessRecord) Get(roomID string) time.Time {
	if v, ok := f.syncs.Get(roomID); ok {
		return v.(time.Time)
	}
	return time.Time{}
}

// Set records a sync of a room.
func (f *FreshnessRecord) Set(roomID string, syncedAt time.Time) {
	f.syncs.Set(roomID, syncedAt, cache.NoExpiration)
}
