// Package set provides a small generic set used for deferred, action and receive event sets.
//
// Every operation that produces a set returns a freshly allocated one, so frames
// holding derived sets never share backing storage.
package set

import (
	"iter"
	"maps"
)

// Set is an unordered collection of distinct comparable items.
// The zero value (nil) is a valid empty set for reads.
type Set[T comparable] map[T]struct{}

// New builds a set holding items.
func New[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts items. Panics on a nil set, like a nil map.
func (s Set[T]) Add(items ...T) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// Remove deletes items. Absent items are ignored.
func (s Set[T]) Remove(items ...T) {
	for _, item := range items {
		delete(s, item)
	}
}

// Contains reports whether item is in the set.
func (s Set[T]) Contains(item T) bool {
	_, exists := s[item]
	return exists
}

// Size returns the number of items in the set.
func (s Set[T]) Size() int {
	return len(s)
}

// Clear removes all items.
func (s Set[T]) Clear() {
	clear(s)
}

// Items returns all items as a sequence, in no particular order.
func (s Set[T]) Items() iter.Seq[T] {
	return maps.Keys(s)
}

// Clone returns an independent copy. Cloning a nil set yields an empty, writable set.
func (s Set[T]) Clone() Set[T] {
	result := make(Set[T], len(s))
	for item := range s {
		result[item] = struct{}{}
	}
	return result
}

// Equal reports whether both sets hold exactly the same items.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for item := range s {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

// Union returns a new set containing all items from both sets.
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := make(Set[T], len(s)+len(other))
	for item := range s {
		result[item] = struct{}{}
	}
	for item := range other {
		result[item] = struct{}{}
	}
	return result
}

// Difference returns a new set containing items in s that are not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	result := make(Set[T], len(s))
	for item := range s {
		if !other.Contains(item) {
			result[item] = struct{}{}
		}
	}
	return result
}
