// Completion: 100% - Linear scan sweep complete
package regalloc

// Linear scan over intervals sorted by start point.
//
// Offsets of intervals whose end lies strictly before the current start are
// returned to the free pool, then the current interval is placed:
//   - pinned registers take their fixed offset or fail,
//   - a single-block interval that fits strictly inside an open hole of a
//     placed register borrows that register's offset,
//   - everything else gets the lowest aligned free offset, preferring the bank
//     its 3-source conflict partner does not use.
//
// When nothing fits, the interval with the longest remaining range among the
// current one and the active spillable ones is sent to scratch memory.
//
// References:
// - Poletto & Sarkar (1999): Linear Scan Register Allocation

import (
	"fmt"

	units "github.com/docker/go-units"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// Config describes the register file window and the allocation policy
type Config struct {
	FileSize     uint32 // register file bytes per thread
	ReservedLow  uint32 // bytes at offset zero never handed out (thread header)
	HoleReuse    bool
	Policy       engine.SpillPolicy
	ScratchLimit uint32 // 0 means unlimited
	Tracer       *diag.Tracer
}

// Result is the outcome of one sweep
type Result struct {
	Offsets     *RegisterMap // register file byte offset of every placed register
	Scratch     *RegisterMap // scratch byte offset of every spilled register
	ScratchSize uint32
	Spilled     []ir.Register // in spill order
	HoleReuses  int
}

type openHole struct {
	hole      int // store index of the hole interval
	owner     int // store index of the owning live interval
	busyUntil int
}

type sweeper struct {
	cfg     Config
	kernel  *ir.Kernel
	lv      *Liveness
	store   *Store
	pool    *pool
	active  []int
	holes   []openHole
	placed  []bool
	pinned  []bool
	spilled []bool
	hosting []int       // reusers currently inside this interval's holes
	hostOf  map[int]int // reuser -> host
	slots   map[uint32]uint32
	res     *Result
}

// Sweep assigns offsets to every interval of lv. The top reserve bytes of the
// register file are kept free for spill code; scratch slots start at
// scratchBase.
func Sweep(k *ir.Kernel, lv *Liveness, cfg Config, reserve, scratchBase uint32) (*Result, error) {
	if cfg.ReservedLow+reserve >= cfg.FileSize {
		return nil, diag.Config("register file of %d bytes cannot hold %d reserved and %d spill bytes",
			cfg.FileSize, cfg.ReservedLow, reserve)
	}
	n := lv.Store.Len()
	s := &sweeper{
		cfg:     cfg,
		kernel:  k,
		lv:      lv,
		store:   lv.Store,
		pool:    newPool(cfg.ReservedLow, cfg.FileSize-reserve),
		placed:  make([]bool, n),
		pinned:  make([]bool, n),
		spilled: make([]bool, n),
		hosting: make([]int, n),
		hostOf:  make(map[int]int),
		slots:   make(map[uint32]uint32),
		res: &Result{
			Offsets:     NewRegisterMap(len(lv.index)),
			Scratch:     NewRegisterMap(0),
			ScratchSize: scratchBase,
		},
	}
	s.res.Offsets.EnableReverseMap()
	s.res.Scratch.EnableReverseMap()
	for i := 0; i < n; i++ {
		s.store.At(i).ReusedHole = false
	}

	s.store.SortByStart()
	s.store.SortByEnd()

	endPos := 0
	for pos := 0; pos < n; pos++ {
		idx := s.store.StartIndex(pos)
		cur := s.store.At(idx)
		endPos = s.expire(cur.MinPoint, endPos)
		if cur.IsHole {
			s.openHole(idx)
			continue
		}
		if err := s.place(idx); err != nil {
			return nil, err
		}
	}
	return s.res, nil
}

// expire frees every interval ending strictly before start
func (s *sweeper) expire(start, endPos int) int {
	n := s.store.Len()
	for ; endPos < n; endPos++ {
		iv := s.store.ByEnd(endPos)
		if iv.MaxPoint >= start {
			break
		}
		idx := s.store.EndIndex(endPos)
		if iv.IsHole {
			s.closeHole(idx)
			continue
		}
		if !s.placed[idx] {
			continue
		}
		s.deactivate(idx)
	}
	return endPos
}

func (s *sweeper) deactivate(idx int) {
	for i, a := range s.active {
		if a == idx {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	s.placed[idx] = false
	iv := s.store.At(idx)
	if host, ok := s.hostOf[idx]; ok {
		s.hosting[host]--
		delete(s.hostOf, idx)
		return
	}
	off := s.res.Offsets.Get(iv.Reg)
	size := slotSize(iv.Size)
	if s.pool.contains(off, size) {
		s.pool.release(off, size)
	}
}

func (s *sweeper) openHole(idx int) {
	if !s.cfg.HoleReuse {
		return
	}
	h := s.store.At(idx)
	owner := s.lv.indexOf(h.Reg)
	if owner < 0 || !s.placed[owner] || s.store.At(owner).ReusedHole {
		return
	}
	s.holes = append(s.holes, openHole{hole: idx, owner: owner, busyUntil: h.MinPoint})
}

func (s *sweeper) closeHole(idx int) {
	for i, h := range s.holes {
		if h.hole == idx {
			s.holes = append(s.holes[:i], s.holes[i+1:]...)
			return
		}
	}
}

func (s *sweeper) dropHolesOf(owner int) {
	kept := s.holes[:0]
	for _, h := range s.holes {
		if h.owner != owner {
			kept = append(kept, h)
		}
	}
	s.holes = kept
}

func (s *sweeper) assign(idx int, off uint32) {
	iv := s.store.At(idx)
	s.res.Offsets.Insert(iv.Reg, off)
	s.placed[idx] = true
	s.active = append(s.active, idx)
}

func (s *sweeper) place(idx int) error {
	cur := s.store.At(idx)
	size := slotSize(cur.Size)
	align := alignmentOf(cur)

	if off, ok := s.kernel.Pinned[cur.Reg]; ok {
		return s.placePinned(idx, off, size)
	}

	if size > s.pool.limit-s.pool.base {
		return diag.Allocation(int64(cur.Reg), "%s needs %s but only %s of the register file is allocatable",
			cur.Reg, units.BytesSize(float64(size)), units.BytesSize(float64(s.pool.limit-s.pool.base)))
	}

	if s.tryHole(idx, size, align) {
		return nil
	}

	avoid := noBank
	if cur.ConflictReg != ir.NoRegister {
		if p := s.lv.indexOf(cur.ConflictReg); p >= 0 && s.placed[p] {
			avoid = bankOf(s.res.Offsets.Get(cur.ConflictReg))
		}
	}

	for {
		if off, ok := s.pool.allocate(size, align, avoid); ok {
			s.assign(idx, off)
			s.cfg.Tracer.Printf("%s -> byte %d (r%d.%d)", cur, off, off/engine.GRFSize, off%engine.GRFSize)
			return nil
		}
		if s.cfg.Policy == engine.SpillNever {
			return diag.Allocation(int64(cur.Reg), "no free register for %s and spilling is disabled", cur.Reg).
				WithHelp(fmt.Sprintf("%d bytes free of %d", s.pool.available(), s.pool.limit-s.pool.base))
		}
		victim := s.pickVictim(cur)
		if victim < 0 {
			return s.spill(idx)
		}
		if err := s.spill(victim); err != nil {
			return err
		}
	}
}

func (s *sweeper) placePinned(idx int, off, size uint32) error {
	cur := s.store.At(idx)
	s.pinned[idx] = true
	if s.pool.contains(off, size) {
		if !s.pool.claim(off, size) {
			return s.pinnedConflict(cur, off, size)
		}
	} else if s.holder(off, size) >= 0 {
		return s.pinnedConflict(cur, off, size)
	}
	s.assign(idx, off)
	s.cfg.Tracer.Printf("%s pinned at byte %d", cur, off)
	return nil
}

func (s *sweeper) pinnedConflict(cur *Interval, off, size uint32) error {
	msg := fmt.Sprintf("%s is pinned at byte %d but the slot is already occupied", cur.Reg, off)
	if h := s.holder(off, size); h >= 0 {
		msg = fmt.Sprintf("%s is pinned at byte %d but the slot is held by %s",
			cur.Reg, off, s.store.At(h).Reg)
	} else if r, ok := s.res.Offsets.GetReverse(off); ok {
		msg = fmt.Sprintf("%s is pinned at byte %d but the slot was last given to %s", cur.Reg, off, r)
	}
	return diag.Allocation(int64(cur.Reg), "%s", msg)
}

// holder returns an active interval overlapping [off, off+size), or -1
func (s *sweeper) holder(off, size uint32) int {
	for _, a := range s.active {
		iv := s.store.At(a)
		o := s.res.Offsets.Get(iv.Reg)
		if o < off+size && off < o+slotSize(iv.Size) {
			return a
		}
	}
	return -1
}

func (s *sweeper) tryHole(idx int, size, align uint32) bool {
	cur := s.store.At(idx)
	if !s.cfg.HoleReuse || cur.BlockID == NoBlock {
		return false
	}
	for i := range s.holes {
		h := &s.holes[i]
		hole := s.store.At(h.hole)
		owner := s.store.At(h.owner)
		if hole.BlockID != cur.BlockID || !cur.Inside(hole) || h.busyUntil >= cur.MinPoint {
			continue
		}
		off := s.res.Offsets.Get(owner.Reg)
		if size > slotSize(owner.Size) || off%align != 0 {
			continue
		}
		cur.ReusedHole = true
		s.hostOf[idx] = h.owner
		s.hosting[h.owner]++
		h.busyUntil = cur.MaxPoint
		s.assign(idx, off)
		s.res.HoleReuses++
		s.cfg.Tracer.Printf("%s reuses the slot of %s inside [%d,%d]", cur, owner.Reg, hole.MinPoint, hole.MaxPoint)
		return true
	}
	return false
}

// pickVictim returns the active spillable interval ending after cur and
// latest of all, or -1 when cur itself should be spilled
func (s *sweeper) pickVictim(cur *Interval) int {
	best := -1
	bestEnd := cur.MaxPoint
	for _, a := range s.active {
		iv := s.store.At(a)
		if s.pinned[a] || iv.ReusedHole || s.hosting[a] > 0 {
			continue
		}
		if iv.MaxPoint > bestEnd {
			best, bestEnd = a, iv.MaxPoint
		}
	}
	return best
}

func (s *sweeper) spill(idx int) error {
	iv := s.store.At(idx)
	if s.placed[idx] {
		s.deactivate(idx)
		s.dropHolesOf(idx)
		s.res.Offsets.Erase(iv.Reg)
	}
	s.spilled[idx] = true

	size := slotSize(iv.Size)
	if size < engine.GRFSize {
		size = engine.GRFSize
	}
	off, reused := s.reuseScratch(iv, size)
	if !reused {
		off = s.res.ScratchSize
		s.res.ScratchSize += size
		s.slots[off] = size
	}
	if s.cfg.ScratchLimit > 0 && s.res.ScratchSize > s.cfg.ScratchLimit {
		return diag.Allocation(int64(iv.Reg), "spilling %s needs %s of scratch, more than the %s per thread limit",
			iv.Reg, units.BytesSize(float64(s.res.ScratchSize)), units.BytesSize(float64(s.cfg.ScratchLimit)))
	}
	s.res.Scratch.Insert(iv.Reg, off)
	s.res.Spilled = append(s.res.Spilled, iv.Reg)
	s.cfg.Tracer.Printf("spill %s to scratch byte %d (reused=%v)", iv, off, reused)
	return nil
}

// reuseScratch finds a scratch slot whose latest occupant died before iv starts
func (s *sweeper) reuseScratch(iv *Interval, size uint32) (uint32, bool) {
	var found uint32
	ok := false
	s.res.Scratch.AscendReverse(func(off uint32, r ir.Register) bool {
		prev := s.lv.IntervalOf(r)
		if prev != nil && prev.MaxPoint < iv.MinPoint && s.slots[off] >= size {
			found, ok = off, true
			return false
		}
		return true
	})
	return found, ok
}
