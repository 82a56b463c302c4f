// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package syncutil

import (
	"cmp"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetBasic(t *testing.T) {
	var s Set[int]

	require.Nil(t, asSlice(&s))
	require.False(t, s.Contains(1))
	require.False(t, s.Remove(1))

	require.True(t, s.Add(1))
	require.False(t, s.Add(1))
	require.True(t, s.Add(2))
	require.Equal(t, []int{1, 2}, asSlice(&s))
	require.True(t, s.Contains(1))
	require.True(t, s.Contains(2))
	require.False(t, s.Contains(3))
	require.Equal(t, 2, s.Len())

	require.True(t, s.Remove(1))
	require.False(t, s.Remove(1))
	require.False(t, s.Remove(3))
	require.Equal(t, []int{2}, asSlice(&s))
	require.False(t, s.Contains(1))
	require.True(t, s.Contains(2))
	require.False(t, s.Contains(3))
}

func TestSetConcurrent(t *testing.T) {
	var s Set[int]
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Add(base*100 + j)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 800, s.Len())
}

func asSlice[V cmp.Ordered](s *Set[V]) []V {
	var res []V
	s.Range(func(v V) bool {
		res = append(res, v)
		return true
	})
	slices.Sort(res)
	return res
}
