// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package collections

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBagOf(t *testing.T) {
	tests := []struct {
		name           string
		elements       []int
		expectedCounts map[int]int
	}{
		{name: "nil", elements: nil, expectedCounts: map[int]int{}},
		{name: "empty", elements: []int{}, expectedCounts: map[int]int{}},
		{
			name:           "unique elements",
			elements:       []int{1, 2, 3},
			expectedCounts: map[int]int{1: 1, 2: 1, 3: 1},
		},
		{
			name:           "duplicate elements",
			elements:       []int{1, 2, 3, 1, 2, 3},
			expectedCounts: map[int]int{1: 2, 2: 2, 3: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			b := BagOf(tt.elements...)

			require.Equal(len(tt.elements), b.Len())
			for entry, count := range tt.expectedCounts {
				require.Equal(count, b.Count(entry))
			}
		})
	}
}

func TestBagAddCount(t *testing.T) {
	require := require.New(t)

	b := NewBag[string]()
	b.AddCount("correct", 7)
	b.AddCount("incorrect", 3)
	b.AddCount("correct", 0)  // no-op
	b.AddCount("incorrect", -5) // no-op, negative counts are ignored

	require.Equal(10, b.Len())
	require.Equal(7, b.Count("correct"))
	require.Equal(3, b.Count("incorrect"))

	mode, count := b.Mode()
	require.Equal("correct", mode)
	require.Equal(7, count)
}

func TestBagList(t *testing.T) {
	require := require.New(t)

	b := BagOf(1, 1, 2, 3, 3, 3)
	list := b.List()
	require.ElementsMatch([]int{1, 2, 3}, list)
}
