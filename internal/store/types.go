package store

import "errors"

// ErrNotFound is returned when a requested room does not exist.
var ErrNotFound = errors.New("record not found")

// ScrapeTarget is a room that can be addressed at the upstream calendar API.
type ScrapeTarget struct {
	Key        string
	ExternalID int32
}
