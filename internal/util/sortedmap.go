// Package util provides small generic data structures shared across the
// compiler's middle-end packages: a sorted string-keyed map used everywhere
// the specification calls for a "sorted-map<name, T>", and a generic stack
// used by the type checker's constraint collection.
package util

import "sort"

// SortedMap is a string-keyed map that iterates in ascending key order.
// Record field order, Infer property order, and typedef field order all
// depend on this: the compiler never iterates a plain Go map for anything
// that affects emitted output.
type SortedMap[V any] struct {
	keys   []string
	values map[string]V
}

// NewSortedMap returns an empty SortedMap.
func NewSortedMap[V any]() *SortedMap[V] {
	return &SortedMap[V]{values: make(map[string]V)}
}

// Set inserts or overwrites the value for key, keeping keys sorted.
func (m *SortedMap[V]) Set(key string, v V) {
	if _, ok := m.values[key]; !ok {
		i := sort.SearchStrings(m.keys, key)
		m.keys = append(m.keys, "")
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = key
	}
	m.values[key] = v
}

// Get returns the value for key and whether it was present.
func (m *SortedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *SortedMap[V]) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of entries.
func (m *SortedMap[V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in ascending order. The caller must not mutate it.
func (m *SortedMap[V]) Keys() []string {
	return m.keys
}

// Each calls fn for every entry in ascending key order.
func (m *SortedMap[V]) Each(fn func(key string, v V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Clone returns a deep-enough copy: a new map with the same key order and
// the same (shallow-copied) values.
func (m *SortedMap[V]) Clone() *SortedMap[V] {
	n := &SortedMap[V]{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]V, len(m.values)),
	}
	for k, v := range m.values {
		n.values[k] = v
	}
	return n
}
