// Completion: 100% - Native instruction word complete
package isa

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the size in bytes of one native instruction on every generation
const WordSize = 16

// Word is one native instruction: four dwords, serialized little-endian.
// Dword 0 is the header, dword 1 the destination plus register files and
// types, dwords 2 and 3 the sources, an immediate or a message descriptor.
type Word [4]uint32

// AppendBytes appends the little-endian encoding of w to b
func (w Word) AppendBytes(b []byte) []byte {
	for _, dw := range w {
		b = binary.LittleEndian.AppendUint32(b, dw)
	}
	return b
}

// Bytes returns the 16-byte encoding of w
func (w Word) Bytes() []byte {
	return w.AppendBytes(make([]byte, 0, WordSize))
}

// WordFromBytes decodes one instruction from the first 16 bytes of b
func WordFromBytes(b []byte) (Word, error) {
	var w Word
	if len(b) < WordSize {
		return w, fmt.Errorf("instruction needs %d bytes, got %d", WordSize, len(b))
	}
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return w, nil
}

// WordsFromBytes splits a program binary into instructions
func WordsFromBytes(b []byte) ([]Word, error) {
	if len(b)%WordSize != 0 {
		return nil, fmt.Errorf("program size %d is not a multiple of %d", len(b), WordSize)
	}
	words := make([]Word, 0, len(b)/WordSize)
	for off := 0; off < len(b); off += WordSize {
		w, _ := WordFromBytes(b[off:])
		words = append(words, w)
	}
	return words, nil
}

func (w Word) String() string {
	return fmt.Sprintf("%08x %08x %08x %08x", w[0], w[1], w[2], w[3])
}
