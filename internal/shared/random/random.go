// Package random provides the seedable random source shared by all generators.
package random

import (
	"math"
	"math/rand/v2"
	"time"
)

// Source is a seedable random generator. It is not safe for concurrent use.
type Source struct {
	r *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeeded returns a Source seeded from the wall clock.
func NewTimeSeeded() *Source {
	return New(uint64(time.Now().UnixNano()))
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

// IntBetween returns a value in [lo, hi].
func (s *Source) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo+1)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Uniform returns a value in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.r.Float64()
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.r.Float64() < p
}

// Digits returns n random decimal digits.
func (s *Source) Digits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + s.r.IntN(10))
	}
	return string(b)
}

// DaysBefore returns date minus a random number of days in [minDays, maxDays].
func (s *Source) DaysBefore(date time.Time, minDays, maxDays int) time.Time {
	return date.AddDate(0, 0, -s.IntBetween(minDays, maxDays))
}

// DaysAfter returns date plus a random number of days in [minDays, maxDays].
func (s *Source) DaysAfter(date time.Time, minDays, maxDays int) time.Time {
	return date.AddDate(0, 0, s.IntBetween(minDays, maxDays))
}

// Shuffle permutes n elements using swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Jitter scales n by a random factor in [1-frac, 1+frac] and rounds.
func (s *Source) Jitter(n int, frac float64) int {
	if n <= 0 {
		return 0
	}
	v := int(math.Round(float64(n) * s.Uniform(1-frac, 1+frac)))
	if v < 0 {
		return 0
	}
	return v
}

// Pick returns a uniformly chosen element. items must not be empty.
func Pick[T any](s *Source, items []T) T {
	return items[s.Intn(len(items))]
}

// Sample returns up to k distinct elements in random order.
func Sample[T any](s *Source, items []T, k int) []T {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	idx := s.r.Perm(len(items))
	if k > len(idx) {
		k = len(idx)
	}
	out := make([]T, k)
	for i := 0; i < k; i++ {
		out[i] = items[idx[i]]
	}
	return out
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
