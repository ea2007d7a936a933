package random

import (
	"fmt"
	"sort"
)

// Weighted draws items in proportion to their weights using a cumulative table.
type Weighted[T any] struct {
	items []T
	cum   []float64
	total float64
}

// Option pairs an item with its weight.
type Option[T any] struct {
	Item   T
	Weight float64
}

// NewWeighted builds a table. Weights must be non-negative with a positive sum.
func NewWeighted[T any](options ...Option[T]) (*Weighted[T], error) {
	w := &Weighted[T]{
		items: make([]T, 0, len(options)),
		cum:   make([]float64, 0, len(options)),
	}
	for _, o := range options {
		if o.Weight < 0 {
			return nil, fmt.Errorf("negative weight %v", o.Weight)
		}
		if o.Weight == 0 {
			continue
		}
		w.total += o.Weight
		w.items = append(w.items, o.Item)
		w.cum = append(w.cum, w.total)
	}
	if w.total <= 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	return w, nil
}

// MustWeighted is NewWeighted for static tables; it panics on invalid weights.
func MustWeighted[T any](options ...Option[T]) *Weighted[T] {
	w, err := NewWeighted(options...)
	if err != nil {
		panic(err)
	}
	return w
}

// Pick draws one item.
func (w *Weighted[T]) Pick(s *Source) T {
	return w.at(s.Float64() * w.total)
}

func (w *Weighted[T]) at(u float64) T {
	i := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] > u })
	if i == len(w.cum) {
		i = len(w.cum) - 1
	}
	return w.items[i]
}

// Items returns the drawable items in table order.
func (w *Weighted[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}
