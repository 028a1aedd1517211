package gencontext

import (
	"errors"
	"testing"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// imeKernel sends msg with payload dword i set to 0x1000+i, except dword 5
// which comes from a scalar register holding 0xabc
func imeKernel(msg ir.MotionMessage, width int) *ir.Kernel {
	k := ir.NewKernel("ime", width)
	resp, x := k.NewRegister(), k.NewRegister()
	k.Emit(ir.Instruction{Op: ir.OpMov, Dst: ir.Scalar(x, ir.TypeUD), Src: []ir.Operand{ir.Imm(0xabc, ir.TypeUD)}, ExecWidth: 1})
	src := make([]ir.Operand, max(msg.PayloadRegs(), 1)*8)
	for i := range src {
		src[i] = ir.Imm(uint64(0x1000+i), ir.TypeUD)
	}
	src[5] = ir.Scalar(x, ir.TypeUD)
	k.Emit(ir.Instruction{Op: ir.OpIme, Dst: ir.Reg(resp, ir.TypeUD), Src: src, Motion: msg, BTI: 3})
	k.Emit(ir.Instruction{Op: ir.OpEOT})
	return k
}

func TestImePayload(t *testing.T) {
	tests := []struct {
		gen  engine.Generation
		msg  ir.MotionMessage
		regs uint32
	}{
		{engine.Gen9, ir.MotionIME, 6},
		{engine.GenKBL, ir.MotionSIC, 8},
		{engine.GenBXT, ir.MotionFBR, 8},
	}
	const threadByte = 0x5a
	for _, tt := range tests {
		t.Run(tt.msg.String(), func(t *testing.T) {
			p := compile(t, tt.gen, imeKernel(tt.msg, 16))
			var send *isa.Decoded
			decoded := decodeAll(t, p)
			for i := range decoded {
				if decoded[i].Opcode == isa.OpSend && decoded[i].SFID == isa.SFIDCheckRefine {
					send = &decoded[i]
				}
			}
			if send == nil {
				t.Fatal("Expected a motion estimation send")
			}
			if send.Desc.Mlen != tt.regs || send.Desc.Rlen != ir.MotionResponseRegs || send.ExecSize != 16 {
				t.Errorf("Unexpected send %s", send)
			}
			if want := 3 | uint32(tt.msg)<<13; send.Desc.Function != want {
				t.Errorf("Function = 0x%x, want 0x%x", send.Desc.Function, want)
			}

			base := send.Src[0].Nr
			staged := 0
			for _, d := range decoded {
				if d.Opcode == isa.OpMov && d.Dst.Nr >= base && d.Dst.Nr < base+tt.regs {
					staged++
					if d.ExecSize != 1 || !d.NoMask {
						t.Errorf("Expected a single unmasked lane, got %s", d)
					}
				}
			}
			if want := int(tt.regs)*8 + 1; staged != want {
				t.Errorf("Expected %d payload moves, got %d", want, staged)
			}

			var m machine
			m.setUD(imeThreadByte, threadByte)
			m.run(t, p.Generation, p.Words)
			for i := 0; i < int(tt.regs)*8; i++ {
				off := (base+uint32(i/8))*isa.GRFSize + uint32(7-i%8)*4
				want := uint32(0x1000 + i)
				switch {
				case i == 5:
					want = 0xabc
				case off == base*isa.GRFSize+imeThreadByte:
					want = want&^0xff | threadByte
				}
				if got := m.ud(off); got != want {
					t.Errorf("Dword %d at byte %d: got 0x%x, want 0x%x", i, off, got, want)
				}
			}
		})
	}
}

func TestImeErrors(t *testing.T) {
	tests := []struct {
		name  string
		gen   engine.Generation
		msg   ir.MotionMessage
		width int
		edit  func(in *ir.Instruction)
		err   error
	}{
		{"gen8", engine.Gen8, ir.MotionIME, 16, nil, diag.ErrUnsupportedFeature},
		{"simd8", engine.Gen9, ir.MotionIME, 8, nil, diag.ErrUnimplemented},
		{"unknown message", engine.Gen9, 0, 16, nil, diag.ErrEncoding},
		{"short payload", engine.Gen9, ir.MotionSIC, 16, func(in *ir.Instruction) { in.Src = in.Src[:48] }, diag.ErrEncoding},
		{"word payload", engine.Gen9, ir.MotionIME, 16, func(in *ir.Instruction) { in.Src[0].Type = ir.TypeUW }, diag.ErrEncoding},
		{"no writeback", engine.Gen9, ir.MotionIME, 16, func(in *ir.Instruction) { in.Dst = ir.Operand{} }, diag.ErrEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := imeKernel(tt.msg, tt.width)
			if tt.edit != nil {
				tt.edit(&k.Instructions[1])
			}
			_, err := newContext(t, tt.gen, k).Select()
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			var ce diag.CompilerError
			if errors.As(err, &ce) && ce.Location.Instruction != 1 {
				t.Errorf("Expected the error at instruction 1, got %s", ce.Location)
			}
		})
	}
}
