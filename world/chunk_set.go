package world

import "slices"

// ChunkSet is a set of chunk indices drained from a dirty list
type ChunkSet map[int]struct{}

// Has reports membership
func (s ChunkSet) Has(index int) bool {
	_, ok := s[index]
	return ok
}

// Sorted returns the indices in ascending order
func (s ChunkSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}
