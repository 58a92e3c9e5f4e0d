// Package analytics computes cross-audit and cross-session reports.
//
// Every function takes fully materialized record slices and returns a fresh
// result; nothing here performs I/O or keeps state between calls, so reports
// can be built concurrently from independent requests. Division by zero is
// guarded everywhere and yields 0.
package analytics

import (
	"math"
	"sort"
)

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type NameValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// percent returns round(n/d*100), or 0 when d is 0.
func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(roundHalfUp(float64(n) / float64(d) * 100))
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// orderedSum accumulates values per key and remembers first-seen order,
// so that sorting by value is stable with respect to encounter order.
type orderedSum[V int | float64] struct {
	keys []string
	vals map[string]V
}

func newOrderedSum[V int | float64]() *orderedSum[V] {
	return &orderedSum[V]{vals: map[string]V{}}
}

func (s *orderedSum[V]) add(key string, v V) {
	if _, ok := s.vals[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.vals[key] += v
}

func (s *orderedSum[V]) counts() []NameCount {
	out := make([]NameCount, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, NameCount{Name: k, Count: int(s.vals[k])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (s *orderedSum[V]) values() []NameValue {
	out := make([]NameValue, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, NameValue{Name: k, Value: float64(s.vals[k])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}
