package scraper

import (
	"errors"
	"fmt"
	"time"

	"calendar-sync-backend/internal/store"
)

// ErrIrreducible is returned when splitting an order that spans less than two days.
var ErrIrreducible = errors.New("scrape order spans less than two days")

// ScrapeOrder asks for the events of one room in the inclusive date range [From, To].
// From and To are UTC midnights.
type ScrapeOrder struct {
	Key        string
	ExternalID int32
	From       time.Time
	To         time.Time
}

// NewScrapeOrder covers yearSpan whole calendar years starting on January 1st of fromYear.
// A yearSpan of zero yields an empty order ending the day before it starts.
func NewScrapeOrder(target store.ScrapeTarget, fromYear, yearSpan int) ScrapeOrder {
	from := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(fromYear+yearSpan, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return ScrapeOrder{Key: target.Key, ExternalID: target.ExternalID, From: from, To: to}
}

// NumDays counts the days from the morning of From to the evening of To. It is never negative.
func (o ScrapeOrder) NumDays() int {
	days := int(o.To.AddDate(0, 0, 1).Sub(o.From).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Split divides the order into two adjacent halves. The lower half ends
// NumDays()/2-1 days after From and the upper half starts the day after.
func (o ScrapeOrder) Split() (ScrapeOrder, ScrapeOrder, error) {
	days := o.NumDays()
	if days < 2 {
		return ScrapeOrder{}, ScrapeOrder{}, fmt.Errorf("%w: %s", ErrIrreducible, o)
	}
	lowerEnd := o.From.AddDate(0, 0, days/2-1)

	lower, upper := o, o
	lower.To = lowerEnd
	upper.From = lowerEnd.AddDate(0, 0, 1)
	return lower, upper, nil
}

func (o ScrapeOrder) String() string {
	return fmt.Sprintf("%s(%d) %s..%s", o.Key, o.ExternalID, o.From.Format(time.DateOnly), o.To.Format(time.DateOnly))
}
