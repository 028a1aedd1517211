package regalloc

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// handLiveness builds a Liveness from explicit intervals
func handLiveness(ivs ...Interval) *Liveness {
	maxReg := 0
	for _, iv := range ivs {
		maxReg = max(maxReg, int(iv.Reg))
	}
	lv := &Liveness{Store: NewStore(len(ivs)), index: make([]int, maxReg+1)}
	for i := range lv.index {
		lv.index[i] = -1
	}
	for _, iv := range ivs {
		idx := lv.Store.Add(iv)
		if !iv.IsHole {
			lv.index[iv.Reg] = idx
		}
	}
	return lv
}

func testConfig(fileSize uint32) Config {
	return Config{FileSize: fileSize, HoleReuse: true, Policy: engine.SpillLongest}
}

// TestSweepThreeIntervals tests [0,5], [3,8], [6,10] with room for one value:
// exactly one of the overlapping pair spills and the third takes the first's slot.
func TestSweepThreeIntervals(t *testing.T) {
	lv := handLiveness(
		span(0, 0, 5, 32),
		span(1, 3, 8, 32),
		span(2, 6, 10, 32),
	)
	k := ir.NewKernel("three", 8)

	// Two slots in total, the upper one kept back for spill code.
	res, err := Sweep(k, lv, testConfig(64), 32, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if len(res.Spilled) != 1 {
		t.Fatalf("Expected exactly one spill, got %v", res.Spilled)
	}
	if res.Spilled[0] != 1 {
		t.Errorf("Expected the longer-lived %%1 to spill, got %s", res.Spilled[0])
	}
	first, ok0 := res.Offsets.Lookup(0)
	third, ok2 := res.Offsets.Lookup(2)
	if !ok0 || !ok2 || first != third {
		t.Errorf("Expected %%2 to reuse %%0's slot, got %d (%v) and %d (%v)", first, ok0, third, ok2)
	}
	if res.ScratchSize != 32 {
		t.Errorf("Expected one 32 byte scratch slot, got %d", res.ScratchSize)
	}
}

// TestSweepVictimIsLongest tests that an active interval outliving the
// current one is evicted instead
func TestSweepVictimIsLongest(t *testing.T) {
	lv := handLiveness(
		span(0, 0, 20, 32),
		span(1, 3, 8, 32),
	)
	res, err := Sweep(ir.NewKernel("victim", 8), lv, testConfig(32), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(res.Spilled) != 1 || res.Spilled[0] != 0 {
		t.Fatalf("Expected %%0 to be evicted, got %v", res.Spilled)
	}
	if off, ok := res.Offsets.Lookup(1); !ok || off != 0 {
		t.Errorf("Expected %%1 at 0, got %d, %v", off, ok)
	}
	if res.Offsets.Contains(0) {
		t.Error("Expected the evicted register to lose its offset")
	}
}

// TestSweepNoOverlap tests that overlapping intervals never share bytes
func TestSweepNoOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sizes := []uint32{2, 4, 32, 64}
	for trial := 0; trial < 50; trial++ {
		var ivs []Interval
		for r := 0; r < 40; r++ {
			lo := rng.Intn(60)
			ivs = append(ivs, span(ir.Register(r), lo, lo+rng.Intn(15), sizes[rng.Intn(len(sizes))]))
		}
		lv := handLiveness(ivs...)
		cfg := testConfig(512)
		cfg.HoleReuse = false
		res, err := Sweep(ir.NewKernel("random", 8), lv, cfg, 0, 0)
		if err != nil {
			t.Fatalf("trial %d: Sweep failed: %v", trial, err)
		}
		checkNoOverlap(t, lv, res.Offsets)
	}
}

func checkNoOverlap(t *testing.T, lv *Liveness, offsets *RegisterMap) {
	t.Helper()
	n := lv.Store.Len()
	for i := 0; i < n; i++ {
		a := lv.Store.At(i)
		if a.IsHole || a.ReusedHole {
			continue
		}
		offA, okA := offsets.Lookup(a.Reg)
		for j := i + 1; j < n; j++ {
			b := lv.Store.At(j)
			if b.IsHole || b.ReusedHole || !a.Overlaps(b) {
				continue
			}
			offB, okB := offsets.Lookup(b.Reg)
			if !okA || !okB {
				continue
			}
			if offA < offB+slotSize(b.Size) && offB < offA+slotSize(a.Size) {
				t.Fatalf("%s at %d and %s at %d share bytes", a, offA, b, offB)
			}
		}
	}
}

// TestSweepHoleReuse tests borrowing the slot of a dead value
func TestSweepHoleReuse(t *testing.T) {
	owner := span(0, 0, 10, 32)
	hole := span(0, 2, 8, 0)
	hole.IsHole = true
	inner := span(1, 3, 6, 32)
	later := span(2, 4, 7, 32)

	lv := handLiveness(owner, hole, inner, later)
	res, err := Sweep(ir.NewKernel("holes", 8), lv, testConfig(64), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(res.Spilled) != 0 {
		t.Fatalf("Expected no spills, got %v", res.Spilled)
	}
	if res.Offsets.Get(1) != res.Offsets.Get(0) {
		t.Errorf("Expected %%1 to reuse %%0's slot")
	}
	if !lv.IntervalOf(1).ReusedHole {
		t.Error("Expected %1 to be marked as a hole reuser")
	}
	if res.Offsets.Get(2) == res.Offsets.Get(0) {
		t.Error("Expected %2 to be kept out of a busy hole")
	}
	if res.HoleReuses != 1 {
		t.Errorf("Expected 1 hole reuse, got %d", res.HoleReuses)
	}
}

// TestSweepHoleOtherBlock tests that holes only serve their own block
func TestSweepHoleOtherBlock(t *testing.T) {
	owner := span(0, 0, 10, 32)
	hole := span(0, 2, 8, 0)
	hole.IsHole = true
	inner := span(1, 3, 6, 32)
	inner.BlockID = 1

	lv := handLiveness(owner, hole, inner)
	res, err := Sweep(ir.NewKernel("blocks", 8), lv, testConfig(64), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.HoleReuses != 0 || res.Offsets.Get(1) == res.Offsets.Get(0) {
		t.Error("Expected no reuse across blocks")
	}
}

// TestSweepHostNotVictim tests that a register lending its hole is not evicted
func TestSweepHostNotVictim(t *testing.T) {
	owner := span(0, 0, 30, 32)
	hole := span(0, 1, 20, 0)
	hole.IsHole = true
	inner := span(1, 2, 10, 32)
	pressure := span(2, 5, 6, 32)

	lv := handLiveness(owner, hole, inner, pressure)
	res, err := Sweep(ir.NewKernel("host", 8), lv, testConfig(32), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(res.Spilled) != 1 || res.Spilled[0] != 2 {
		t.Errorf("Expected only %%2 to spill, got %v", res.Spilled)
	}
}

// TestSweepPinnedConflict tests that a taken fixed slot is fatal and named
func TestSweepPinnedConflict(t *testing.T) {
	k := ir.NewKernel("pinned", 8)
	k.Pin(0, 64)
	k.Pin(1, 64)
	lv := handLiveness(span(0, 0, 10, 32), span(1, 4, 12, 32))

	_, err := Sweep(k, lv, testConfig(256), 0, 0)
	if !errors.Is(err, diag.ErrAllocation) {
		t.Fatalf("Expected an allocation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "%1") || !strings.Contains(err.Error(), "held by %0") {
		t.Errorf("Expected both registers in %q", err.Error())
	}
}

// TestSweepPinnedPlacement tests that pinned registers land exactly
func TestSweepPinnedPlacement(t *testing.T) {
	k := ir.NewKernel("pinned", 8)
	k.Pin(1, 96)
	lv := handLiveness(span(0, 0, 10, 32), span(1, 1, 12, 32), span(2, 2, 9, 64))
	res, err := Sweep(k, lv, testConfig(256), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := res.Offsets.Get(1); got != 96 {
		t.Errorf("Expected %%1 at 96, got %d", got)
	}
	if got := res.Offsets.Get(2); got != 32 {
		t.Errorf("Expected %%2 in the gap at 32, got %d", got)
	}
}

// TestSweepSpillNever tests the no-spill policy
func TestSweepSpillNever(t *testing.T) {
	cfg := testConfig(32)
	cfg.Policy = engine.SpillNever
	lv := handLiveness(span(0, 0, 5, 32), span(7, 1, 4, 32))
	_, err := Sweep(ir.NewKernel("never", 8), lv, cfg, 0, 0)
	if !errors.Is(err, diag.ErrAllocation) || !strings.Contains(err.Error(), "%7") {
		t.Errorf("Expected an allocation error naming %%7, got %v", err)
	}
}

// TestSweepOversized tests an interval larger than the register file
func TestSweepOversized(t *testing.T) {
	lv := handLiveness(span(3, 0, 5, 128))
	_, err := Sweep(ir.NewKernel("big", 8), lv, testConfig(64), 0, 0)
	var ce diag.CompilerError
	if !errors.As(err, &ce) || ce.Location.Register != 3 {
		t.Errorf("Expected an error for %%3, got %v", err)
	}
}

// TestSweepScratchReuse tests that spilled registers with disjoint ranges
// share a scratch slot
func TestSweepScratchReuse(t *testing.T) {
	k := ir.NewKernel("scratch", 8)
	k.Pin(0, 0)
	lv := handLiveness(span(0, 0, 10, 32), span(1, 1, 2, 32), span(2, 3, 4, 32))
	res, err := Sweep(k, lv, testConfig(32), 0, 0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(res.Spilled) != 2 {
		t.Fatalf("Expected two spills, got %v", res.Spilled)
	}
	if res.Scratch.Get(1) != res.Scratch.Get(2) || res.ScratchSize != 32 {
		t.Errorf("Expected one shared slot, got %d and %d (%d bytes)",
			res.Scratch.Get(1), res.Scratch.Get(2), res.ScratchSize)
	}
}

// TestSweepScratchLimit tests the per-thread scratch budget
func TestSweepScratchLimit(t *testing.T) {
	cfg := testConfig(32)
	cfg.ScratchLimit = 32
	k := ir.NewKernel("limit", 8)
	k.Pin(0, 0)
	lv := handLiveness(span(0, 0, 10, 32), span(1, 1, 5, 32), span(2, 2, 6, 32))
	_, err := Sweep(k, lv, cfg, 0, 0)
	if !errors.Is(err, diag.ErrAllocation) || !strings.Contains(err.Error(), "%2") {
		t.Errorf("Expected the scratch limit to fail on %%2, got %v", err)
	}
}
