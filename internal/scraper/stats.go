package scraper

import (
	"fmt"
	"math"
	"time"
)

// Statistic accumulates running descriptive statistics in constant memory
// using Welford's online algorithm.
type Statistic struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Push adds one sample.
func (s *Statistic) Push(x float64) {
	s.n++
	if s.n == 1 {
		s.min, s.max = x, x
	} else {
		s.min = math.Min(s.min, x)
		s.max = math.Max(s.max, x)
	}
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

// PushDuration adds a duration sample measured in seconds.
func (s *Statistic) PushDuration(d time.Duration) {
	s.Push(d.Seconds())
}

func (s *Statistic) Count() int    { return s.n }
func (s *Statistic) Mean() float64 { return s.mean }
func (s *Statistic) Min() float64  { return s.min }
func (s *Statistic) Max() float64  { return s.max }

// StdDev is the population standard deviation of the samples pushed so far.
func (s *Statistic) StdDev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n))
}

func (s *Statistic) String() string {
	if s.n == 0 {
		return "n=0"
	}
	return fmt.Sprintf("n=%d mean=%.2f sd=%.2f min=%.2f max=%.2f", s.n, s.mean, s.StdDev(), s.min, s.max)
}
