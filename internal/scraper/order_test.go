package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-sync-backend/internal/store"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

var target = store.ScrapeTarget{Key: "5602.EG.001", ExternalID: 42}

func TestNewScrapeOrder(t *testing.T) {
	o := NewScrapeOrder(target, 2020, 1)

	assert.Equal(t, ScrapeOrder{Key: "5602.EG.001", ExternalID: 42, From: day(2020, 1, 1), To: day(2020, 12, 31)}, o)
	assert.Equal(t, 366, o.NumDays(), "2020 is a leap year")

	o = NewScrapeOrder(target, 2022, 4)
	assert.Equal(t, day(2025, 12, 31), o.To)
	assert.Equal(t, 365*3+366, o.NumDays())
}

func TestNewScrapeOrder_ZeroSpan(t *testing.T) {
	o := NewScrapeOrder(target, 2020, 0)

	assert.Equal(t, day(2020, 1, 1), o.From)
	assert.Equal(t, day(2019, 12, 31), o.To)
	assert.Equal(t, 0, o.NumDays())

	_, _, err := o.Split()
	assert.ErrorIs(t, err, ErrIrreducible)
}

func TestScrapeOrder_SplitTwoDays(t *testing.T) {
	o := ScrapeOrder{Key: "R", ExternalID: 1, From: day(2020, 1, 1), To: day(2020, 1, 2)}
	require.Equal(t, 2, o.NumDays())

	lower, upper, err := o.Split()
	require.NoError(t, err)

	assert.Equal(t, ScrapeOrder{Key: "R", ExternalID: 1, From: day(2020, 1, 1), To: day(2020, 1, 1)}, lower)
	assert.Equal(t, ScrapeOrder{Key: "R", ExternalID: 1, From: day(2020, 1, 2), To: day(2020, 1, 2)}, upper)
	assert.Equal(t, 1, lower.NumDays())
	assert.Equal(t, 1, upper.NumDays())
}

func TestScrapeOrder_SplitSingleDay(t *testing.T) {
	o := ScrapeOrder{Key: "R", ExternalID: 1, From: day(2020, 3, 1), To: day(2020, 3, 1)}

	_, _, err := o.Split()
	assert.ErrorIs(t, err, ErrIrreducible)
}

func TestScrapeOrder_SplitIsAdjacentAndComplete(t *testing.T) {
	testCases := []ScrapeOrder{
		NewScrapeOrder(target, 2020, 1),
		NewScrapeOrder(target, 2021, 4),
		{Key: "R", From: day(2024, 2, 27), To: day(2024, 3, 1)},
		{Key: "R", From: day(2024, 1, 1), To: day(2024, 1, 3)},
	}

	for _, o := range testCases {
		t.Run(o.String(), func(t *testing.T) {
			lower, upper, err := o.Split()
			require.NoError(t, err)

			assert.Equal(t, o.From, lower.From)
			assert.Equal(t, o.To, upper.To)
			assert.Equal(t, lower.To.AddDate(0, 0, 1), upper.From, "halves must be adjacent")
			assert.Equal(t, o.NumDays(), lower.NumDays()+upper.NumDays())
			assert.GreaterOrEqual(t, lower.NumDays(), 1)
			assert.GreaterOrEqual(t, upper.NumDays(), 1)
		})
	}
}

func TestScrapeOrder_RecursiveSplitTerminates(t *testing.T) {
	queue := []ScrapeOrder{NewScrapeOrder(target, 2020, 1)}
	covered := map[time.Time]int{}
	splits := 0

	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]
		lower, upper, err := o.Split()
		if err != nil {
			require.Equal(t, 1, o.NumDays())
			covered[o.From]++
			continue
		}
		splits++
		require.Less(t, splits, 1000, "splitting must terminate")
		queue = append(queue, lower, upper)
	}

	assert.Len(t, covered, 366)
	for d, n := range covered {
		assert.Equal(t, 1, n, "day %s covered more than once", d.Format(time.DateOnly))
	}
	assert.Equal(t, 365, splits)
}

func TestScrapeOrder_String(t *testing.T) {
	assert.Equal(t, "5602.EG.001(42) 2020-01-01..2020-12-31", NewScrapeOrder(target, 2020, 1).String())
}
