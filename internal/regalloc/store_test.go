package regalloc

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

func span(r ir.Register, lo, hi int, size uint32) Interval {
	iv := NewInterval(r)
	iv.MinPoint = lo
	iv.MaxPoint = hi
	iv.Size = size
	iv.BlockID = 0
	return iv
}

// TestNewInterval tests that the first observation narrows the inverted range
func TestNewInterval(t *testing.T) {
	iv := NewInterval(3)
	if iv.Valid() {
		t.Fatal("Expected a fresh interval to be invalid")
	}
	iv.Observe(7)
	if iv.MinPoint != 7 || iv.MaxPoint != 7 || iv.AccessCount != 1 {
		t.Errorf("Unexpected interval after one observation: %s", &iv)
	}
	iv.Observe(2)
	iv.Observe(9)
	if iv.MinPoint != 2 || iv.MaxPoint != 9 || iv.Length() != 8 {
		t.Errorf("Expected [2,9], got %s", &iv)
	}
}

// TestStoreSortByStartStable tests ordering and the insertion-order tie break
func TestStoreSortByStartStable(t *testing.T) {
	s := NewStore(0)
	s.Add(span(0, 5, 9, 4))
	s.Add(span(1, 2, 3, 4))
	s.Add(span(2, 5, 6, 4))
	s.Add(span(3, 2, 8, 4))

	s.SortByStart()
	want := []int{1, 3, 0, 2}
	for pos, idx := range want {
		if got := s.StartIndex(pos); got != idx {
			t.Errorf("byStart(%d) = %d, want %d", pos, got, idx)
		}
	}

	s.SortByEnd()
	wantEnd := []int{1, 2, 3, 0}
	for pos, idx := range wantEnd {
		if got := s.EndIndex(pos); got != idx {
			t.Errorf("byEnd(%d) = %d, want %d", pos, got, idx)
		}
	}

	// Sorting by end must not disturb the start view or the backing array.
	if s.ByStart(0).Reg != 1 || s.At(0).Reg != 0 {
		t.Error("Expected sorting to move only the permutations")
	}
}

// TestStoreSortDeterminism tests the ordering property over random input
func TestStoreSortDeterminism(t *testing.T) {
	prop := func(starts []uint8) bool {
		s := NewStore(len(starts))
		for i, st := range starts {
			s.Add(span(ir.Register(i), int(st%16), int(st%16)+int(st/16), 4))
		}
		s.SortByEnd()
		s.SortByStart()
		for pos := 1; pos < s.Len(); pos++ {
			prev, cur := s.ByStart(pos-1), s.ByStart(pos)
			if prev.MinPoint > cur.MinPoint {
				return false
			}
			if prev.MinPoint == cur.MinPoint && s.StartIndex(pos-1) > s.StartIndex(pos) {
				return false
			}
		}
		return true
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Error(err)
	}
}

// TestStoreClear tests that Clear keeps capacity
func TestStoreClear(t *testing.T) {
	s := NewStore(16)
	for i := 0; i < 10; i++ {
		s.Add(span(ir.Register(i), i, i+1, 4))
	}
	before := s.MemoryUsage()
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Expected an empty store, got %d intervals", s.Len())
	}
	if s.MemoryUsage() != before {
		t.Errorf("Expected capacity to survive Clear")
	}
}

// TestStorePermutationsComplete tests that both views stay total orderings
func TestStorePermutationsComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStore(0)
	for i := 0; i < 200; i++ {
		lo := rng.Intn(100)
		s.Add(span(ir.Register(i), lo, lo+rng.Intn(20), 4))
	}
	s.SortByStart()
	s.SortByEnd()
	seenStart := make([]bool, s.Len())
	seenEnd := make([]bool, s.Len())
	for pos := 0; pos < s.Len(); pos++ {
		seenStart[s.StartIndex(pos)] = true
		seenEnd[s.EndIndex(pos)] = true
	}
	for i := range seenStart {
		if !seenStart[i] || !seenEnd[i] {
			t.Fatalf("Index %d missing from a permutation", i)
		}
	}
}
