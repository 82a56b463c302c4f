// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package syncutil

// Set is a concurrency-safe set of values of type V. The zero value is an
// empty set ready for use. All methods are safe to call from multiple
// goroutines, and each method is atomic with respect to the others.
type Set[V comparable] struct {
	mu   RWMutex
	vals map[V]struct{}
}

// Add adds the value to the set. It returns true if the value was not
// already present.
func (s *Set[V]) Add(v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals == nil {
		s.vals = make(map[V]struct{})
	}
	if _, ok := s.vals[v]; ok {
		return false
	}
	s.vals[v] = struct{}{}
	return true
}

// Remove removes the value from the set. It returns true if the value was
// present.
func (s *Set[V]) Remove(v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vals[v]; !ok {
		return false
	}
	delete(s.vals, v)
	return true
}

// Contains returns true if the value is in the set.
func (s *Set[V]) Contains(v V) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vals[v]
	return ok
}

// Len returns the number of values in the set.
func (s *Set[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vals)
}

// Range calls fn for each value in the set until fn returns false. The
// iteration is performed over a snapshot of the set's contents, so fn may
// itself mutate the set.
func (s *Set[V]) Range(fn func(v V) bool) {
	s.mu.RLock()
	snap := make([]V, 0, len(s.vals))
	for v := range s.vals {
		snap = append(snap, v)
	}
	s.mu.RUnlock()
	for _, v := range snap {
		if !fn(v) {
			return
		}
	}
}
