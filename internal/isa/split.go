// Completion: 100% - 3-source SIMD16 split complete
package isa

// SplitThreeSource turns a SIMD16 3-source word into two SIMD8 words, the
// second covering the upper eight lanes (quarter Q2). Every register that is
// not replicated advances by one on the second word. ok is false when w is
// not a SIMD16 3-source instruction.
func (l *Layout) SplitThreeSource(w Word) (q1, q2 Word, ok bool) {
	if !Opcode(l.Opcode.Get(&w)).IsThreeSource() || DecodeExecSize(l.ExecSize.Get(&w)) != 16 {
		return w, Word{}, false
	}
	exec8, _ := EncodeExecSize(8)
	q1 = w
	l.ExecSize.Set(&q1, exec8)
	l.QtrControl.Set(&q1, QuarterQ1)

	q2 = q1
	l.QtrControl.Set(&q2, QuarterQ2)
	l.T3DstNr.Set(&q2, l.T3DstNr.Get(&q2)+1)
	for i := 0; i < 3; i++ {
		if l.T3RepCtrl[i].Get(&q2) == 0 {
			l.T3Nr[i].Set(&q2, l.T3Nr[i].Get(&q2)+1)
		}
	}
	return q1, q2, true
}

// IsThreeSourceSIMD16 reports whether w still needs splitting
func (l *Layout) IsThreeSourceSIMD16(w Word) bool {
	return Opcode(l.Opcode.Get(&w)).IsThreeSource() && DecodeExecSize(l.ExecSize.Get(&w)) == 16
}
