//go:build amd64

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

// nativeBackend reports whether this build can generate machine code.
const nativeBackend = true

/*

All kernels are leaf functions under the Go register ABI: the first
argument arrives in RAX, the second in RBX, the result leaves in EAX.
They build no stack frame, call nothing, touch only argument and
scratch registers (RCX, RDX, RSI) and end in RET, so they can run on
any goroutine stack without cooperation from the runtime.

*/

// emitConst generates: MOV EAX, imm; RET
func emitConst(w *Writer, imm int32) {
	w.EmitMovReg32Imm32(RegRAX, uint32(imm))
	w.EmitRet()
}

// emitAdd generates the two-operand add: a in EAX, b in EBX, the sum
// replaces a.
func emitAdd(w *Writer, _ int32) {
	w.EmitAddReg32(RegRAX, RegRBX)
	w.EmitRet()
}

// emitArraySum generates the naive element loop. The array pointer
// arrives in RAX and moves to RSI because EAX accumulates the sum.
// ECX walks the element index; a non-positive count skips the loop
// without ever touching the pointer.
func emitArraySum(w *Writer, _ int32) {
	done := w.ReserveLabel()

	w.emitMovRegReg(RegRSI, RegRAX) // RSI = p
	w.emitXorReg(RegRAX)            // sum = 0
	w.emitXorReg(RegRCX)            // i = 0
	w.EmitTestReg32(RegRBX, RegRBX)
	w.EmitJcc(CcLE, done) // n <= 0

	loop := w.DefineLabel()
	w.EmitAddReg32MemIndex(RegRAX, RegRSI, RegRCX, 4) // sum += p[i]
	w.EmitIncReg32(RegRCX)
	w.EmitCmpReg32(RegRCX, RegRBX)
	w.EmitJcc(CcL, loop) // i < n

	w.MarkLabel(done)
	w.EmitRet()
}

// emitArraySum4 generates the unrolled variant: EDX counts blocks of
// four and RSI advances by 16 per block, then a scalar tail finishes
// the remainder. ECX tracks consumed elements so the tail check can
// reuse the plain compare against n.
func emitArraySum4(w *Writer, _ int32) {
	done := w.ReserveLabel()
	tail := w.ReserveLabel()

	w.emitMovRegReg(RegRSI, RegRAX) // RSI = p
	w.emitXorReg(RegRAX)            // sum = 0
	w.emitXorReg(RegRCX)            // consumed = 0
	w.EmitTestReg32(RegRBX, RegRBX)
	w.EmitJcc(CcLE, done) // n <= 0

	w.emitMovRegReg32(RegRDX, RegRBX)
	w.EmitShrReg32Imm8(RegRDX, 2) // blocks = n / 4, sets ZF
	w.EmitJcc(CcE, tail)

	blk := w.DefineLabel()
	w.EmitAddReg32Mem(RegRAX, RegRSI, 0)
	w.EmitAddReg32Mem(RegRAX, RegRSI, 4)
	w.EmitAddReg32Mem(RegRAX, RegRSI, 8)
	w.EmitAddReg32Mem(RegRAX, RegRSI, 12)
	w.EmitAddReg64Imm8(RegRSI, 16)
	w.EmitAddReg32Imm8(RegRCX, 4)
	w.EmitDecReg32(RegRDX)
	w.EmitJcc(CcNE, blk)

	w.MarkLabel(tail)
	w.EmitCmpReg32(RegRCX, RegRBX)
	w.EmitJcc(CcGE, done)

	rem := w.DefineLabel()
	w.EmitAddReg32Mem(RegRAX, RegRSI, 0)
	w.EmitAddReg64Imm8(RegRSI, 4)
	w.EmitIncReg32(RegRCX)
	w.EmitCmpReg32(RegRCX, RegRBX)
	w.EmitJcc(CcL, rem)

	w.MarkLabel(done)
	w.EmitRet()
}
