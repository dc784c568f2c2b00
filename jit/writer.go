/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package jit

import "encoding/binary"

// Reg represents a hardware register index. The actual register constants
// (RAX, R8, etc.) are defined in architecture-specific files.
type Reg uint8

// Fixup records a forward reference that must be patched after all
// labels are placed.
type Fixup struct {
	CodePos  int32 // position of the placeholder in code
	LabelID  uint8 // target label
	Size     uint8 // 4=rel32
	Relative bool  // true for PC-relative jumps
}

// Writer is the platform-independent code emitter scaffold.
// Architecture-specific emit methods are defined in emit_<arch>.go files.
// All emits are bounds-checked against a fixed buffer; the first emit
// that does not fit poisons the writer and Bytes returns the overflow.
type Writer struct {
	buf []byte
	pos int
	err error

	Labels    [64]int32
	LabelNext uint8

	Fixups    [128]Fixup
	FixupNext uint8
}

// NewWriter creates a writer emitting into a fixed buffer of capacity bytes.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, capacity)}
}

// Len returns the current write position.
func (w *Writer) Len() int {
	return w.pos
}

// Err returns the sticky emission error, nil while the writer is healthy.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) overflow(need int) {
	if w.err == nil {
		w.err = &BufferOverflow{Capacity: len(w.buf), Needed: need}
	}
}

// emitByte appends a single byte to the writer.
func (w *Writer) emitByte(b byte) {
	if w.err != nil {
		return
	}
	if w.pos+1 > len(w.buf) {
		w.overflow(w.pos + 1)
		return
	}
	w.buf[w.pos] = b
	w.pos++
}

// emitBytes appends raw bytes to the writer.
func (w *Writer) emitBytes(bs ...byte) {
	if w.err != nil {
		return
	}
	if w.pos+len(bs) > len(w.buf) {
		w.overflow(w.pos + len(bs))
		return
	}
	copy(w.buf[w.pos:], bs)
	w.pos += len(bs)
}

// emitU32 appends a little-endian uint32.
func (w *Writer) emitU32(v uint32) {
	if w.err != nil {
		return
	}
	if w.pos+4 > len(w.buf) {
		w.overflow(w.pos + 4)
		return
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

// emitU64 appends a little-endian uint64.
func (w *Writer) emitU64(v uint64) {
	if w.err != nil {
		return
	}
	if w.pos+8 > len(w.buf) {
		w.overflow(w.pos + 8)
		return
	}
	binary.LittleEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

// DefineLabel allocates a new label at the current write position.
func (w *Writer) DefineLabel() uint8 {
	if int(w.LabelNext) == len(w.Labels) {
		panic("jit: too many labels")
	}
	id := w.LabelNext
	w.LabelNext++
	w.Labels[id] = int32(w.pos)
	return id
}

// ReserveLabel allocates a label ID for later placement via MarkLabel.
func (w *Writer) ReserveLabel() uint8 {
	if int(w.LabelNext) == len(w.Labels) {
		panic("jit: too many labels")
	}
	id := w.LabelNext
	w.LabelNext++
	w.Labels[id] = -1 // undefined until MarkLabel
	return id
}

// MarkLabel sets the position of a previously reserved label.
func (w *Writer) MarkLabel(id uint8) {
	w.Labels[id] = int32(w.pos)
}

// AddFixup records a forward reference to be patched by ResolveFixups.
func (w *Writer) AddFixup(labelID uint8, size uint8, relative bool) {
	if int(w.FixupNext) == len(w.Fixups) {
		panic("jit: too many fixups")
	}
	w.Fixups[w.FixupNext] = Fixup{
		CodePos:  int32(w.pos),
		LabelID:  labelID,
		Size:     size,
		Relative: relative,
	}
	w.FixupNext++
}

// ResolveFixups patches all recorded forward references after code generation.
func (w *Writer) ResolveFixups() {
	if w.err != nil {
		return
	}
	for i := uint8(0); i < w.FixupNext; i++ {
		f := &w.Fixups[i]
		targetPos := w.Labels[f.LabelID]
		if targetPos < 0 {
			panic("jit: undefined label")
		}
		if f.Relative {
			offset := targetPos - (f.CodePos + int32(f.Size))
			binary.LittleEndian.PutUint32(w.buf[f.CodePos:], uint32(offset))
		} else {
			binary.LittleEndian.PutUint32(w.buf[f.CodePos:], uint32(targetPos))
		}
	}
}

// Bytes returns the emitted code, or the sticky error if any emit
// overflowed the buffer. Call after ResolveFixups.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf[:w.pos], nil
}
