// Completion: 100% - Interval model complete
package regalloc

import (
	"fmt"
	"math"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// NoBlock marks an interval that spans more than one basic block
const NoBlock = -1

// Interval is the live range of one virtual register plus its allocation
// hints. A hole interval (IsHole) instead marks a stretch inside its owner's
// range where the owner holds a dead value and its slot can be borrowed.
type Interval struct {
	Reg           ir.Register
	MinPoint      int
	MaxPoint      int
	AccessCount   int
	BlockID       int
	ConflictReg   ir.Register // keep out of this register's bank
	TripleOpAlign bool        // operand of a 3-source instruction
	ReusedHole    bool        // placed inside another register's hole
	IsHole        bool
	Size          uint32 // bytes
}

// NewInterval returns an empty interval for r. The range starts inverted so
// the first Observe narrows it correctly.
func NewInterval(r ir.Register) Interval {
	return Interval{
		Reg:         r,
		MinPoint:    math.MaxInt32,
		MaxPoint:    math.MinInt32,
		BlockID:     NoBlock,
		ConflictReg: ir.NoRegister,
	}
}

// Observe widens the range to cover pos and counts the access
func (iv *Interval) Observe(pos int) {
	if pos < iv.MinPoint {
		iv.MinPoint = pos
	}
	if pos > iv.MaxPoint {
		iv.MaxPoint = pos
	}
	iv.AccessCount++
}

// Valid reports whether the interval was observed at least once
func (iv *Interval) Valid() bool {
	return iv.MinPoint <= iv.MaxPoint
}

// Overlaps reports whether the closed ranges of iv and o intersect
func (iv *Interval) Overlaps(o *Interval) bool {
	return iv.MinPoint <= o.MaxPoint && o.MinPoint <= iv.MaxPoint
}

// Inside reports whether iv lies strictly between the ends of o
func (iv *Interval) Inside(o *Interval) bool {
	return o.MinPoint < iv.MinPoint && iv.MaxPoint < o.MaxPoint
}

// Length returns the number of program points covered
func (iv *Interval) Length() int {
	if !iv.Valid() {
		return 0
	}
	return iv.MaxPoint - iv.MinPoint + 1
}

func (iv *Interval) String() string {
	kind := "live"
	if iv.IsHole {
		kind = "hole"
	}
	return fmt.Sprintf("%s %s [%d,%d] %dB", kind, iv.Reg, iv.MinPoint, iv.MaxPoint, iv.Size)
}
