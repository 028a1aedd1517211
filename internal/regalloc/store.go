// Completion: 100% - Interval store complete
package regalloc

import (
	"sort"
	"unsafe"
)

// Store keeps every interval in one contiguous slice and exposes two index
// permutations over it, ordered by start and by end point. Sorting moves only
// the permutations, so an interval's index is stable for the store's life.
type Store struct {
	intervals []Interval
	byStart   []int
	byEnd     []int
}

// NewStore returns a store with room for n intervals
func NewStore(n int) *Store {
	s := &Store{}
	s.Reserve(n)
	return s
}

// Reserve grows capacity to at least n intervals
func (s *Store) Reserve(n int) {
	if n <= cap(s.intervals) {
		return
	}
	intervals := make([]Interval, len(s.intervals), n)
	copy(intervals, s.intervals)
	s.intervals = intervals
	byStart := make([]int, len(s.byStart), n)
	copy(byStart, s.byStart)
	s.byStart = byStart
	byEnd := make([]int, len(s.byEnd), n)
	copy(byEnd, s.byEnd)
	s.byEnd = byEnd
}

// Add appends iv and returns its index. The new index is appended to both
// permutations, which must be sorted again before the sorted views are used.
func (s *Store) Add(iv Interval) int {
	idx := len(s.intervals)
	s.intervals = append(s.intervals, iv)
	s.byStart = append(s.byStart, idx)
	s.byEnd = append(s.byEnd, idx)
	return idx
}

// Len returns the number of intervals
func (s *Store) Len() int {
	return len(s.intervals)
}

// At returns the interval stored at index i
func (s *Store) At(i int) *Interval {
	return &s.intervals[i]
}

// SortByStart orders the start view by MinPoint. Ties keep insertion order.
func (s *Store) SortByStart() {
	resetIdentity(s.byStart)
	sort.SliceStable(s.byStart, func(a, b int) bool {
		return s.intervals[s.byStart[a]].MinPoint < s.intervals[s.byStart[b]].MinPoint
	})
}

// SortByEnd orders the end view by MaxPoint. Ties keep insertion order.
func (s *Store) SortByEnd() {
	resetIdentity(s.byEnd)
	sort.SliceStable(s.byEnd, func(a, b int) bool {
		return s.intervals[s.byEnd[a]].MaxPoint < s.intervals[s.byEnd[b]].MaxPoint
	})
}

func resetIdentity(perm []int) {
	for i := range perm {
		perm[i] = i
	}
}

// ByStart returns the interval at position pos of the start view
func (s *Store) ByStart(pos int) *Interval {
	return &s.intervals[s.byStart[pos]]
}

// ByEnd returns the interval at position pos of the end view
func (s *Store) ByEnd(pos int) *Interval {
	return &s.intervals[s.byEnd[pos]]
}

// StartIndex returns the store index at position pos of the start view
func (s *Store) StartIndex(pos int) int {
	return s.byStart[pos]
}

// EndIndex returns the store index at position pos of the end view
func (s *Store) EndIndex(pos int) int {
	return s.byEnd[pos]
}

// Clear drops every interval and keeps the allocated capacity
func (s *Store) Clear() {
	s.intervals = s.intervals[:0]
	s.byStart = s.byStart[:0]
	s.byEnd = s.byEnd[:0]
}

// MemoryUsage estimates the bytes held by the store's backing arrays
func (s *Store) MemoryUsage() int {
	return cap(s.intervals)*int(unsafe.Sizeof(Interval{})) +
		(cap(s.byStart)+cap(s.byEnd))*int(unsafe.Sizeof(int(0)))
}
