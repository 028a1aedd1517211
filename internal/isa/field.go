// Completion: 100% - Bit field access complete
package isa

// Field is the inclusive bit range [Lo, Hi] of a Word, bits numbered 0..127
// from the least significant bit of dword 0. A field may cross a dword
// boundary but never the boundary between dwords 1 and 2.
type Field struct {
	Hi, Lo uint8
}

// none is a field the layout does not have. Reads give zero, writes are dropped.
var none = Field{Hi: 0, Lo: 1}

func bits(hi, lo uint8) Field {
	return Field{Hi: hi, Lo: lo}
}

func bit(b uint8) Field {
	return Field{Hi: b, Lo: b}
}

// Present reports whether the layout has this field
func (f Field) Present() bool {
	return f.Hi >= f.Lo
}

// Width returns the number of bits
func (f Field) Width() uint {
	if !f.Present() {
		return 0
	}
	return uint(f.Hi-f.Lo) + 1
}

// Max returns the largest value the field holds
func (f Field) Max() uint64 {
	return 1<<f.Width() - 1
}

func (f Field) half(w *Word) (uint64, uint) {
	h := int(f.Lo / 64)
	return uint64(w[2*h]) | uint64(w[2*h+1])<<32, uint(f.Lo % 64)
}

// Get extracts the field from w
func (f Field) Get(w *Word) uint32 {
	if !f.Present() {
		return 0
	}
	v, shift := f.half(w)
	return uint32(v >> shift & f.Max())
}

// Set stores v, truncated to the field width, into w
func (f Field) Set(w *Word, v uint32) {
	if !f.Present() {
		return
	}
	h := int(f.Lo / 64)
	cur, shift := f.half(w)
	mask := f.Max() << shift
	cur = cur&^mask | uint64(v)<<shift&mask
	w[2*h] = uint32(cur)
	w[2*h+1] = uint32(cur >> 32)
}

// Fits reports whether v is representable without truncation
func (f Field) Fits(v uint32) bool {
	return uint64(v) <= f.Max()
}

// SplitField is a value whose low bits and top bits live in two fields
type SplitField struct {
	Low, High Field
}

// Width returns the combined number of bits
func (s SplitField) Width() uint {
	return s.Low.Width() + s.High.Width()
}

// Get reassembles the value
func (s SplitField) Get(w *Word) uint32 {
	return s.Low.Get(w) | s.High.Get(w)<<s.Low.Width()
}

// Set distributes v over both fields
func (s SplitField) Set(w *Word, v uint32) {
	s.Low.Set(w, v)
	s.High.Set(w, v>>s.Low.Width())
}

// GetSigned reassembles the value and sign-extends it
func (s SplitField) GetSigned(w *Word) int32 {
	n := s.Width()
	v := s.Get(w)
	return int32(v<<(32-n)) >> (32 - n)
}

// SetSigned stores a two's complement value
func (s SplitField) SetSigned(w *Word, v int32) {
	s.Set(w, uint32(v))
}

// FitsSigned reports whether v is representable
func (s SplitField) FitsSigned(v int32) bool {
	n := s.Width()
	lo, hi := -(int32(1) << (n - 1)), int32(1)<<(n-1)-1
	return v >= lo && v <= hi
}
