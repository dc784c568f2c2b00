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

// AMD64 register constants for the Go register ABI.
//
// Go register ABI (amd64): integer args arrive in RAX, RBX, RCX, RDI,
// RSI, R8-R11 in that order; the integer result returns in RAX. RDX
// carries the closure context and is free scratch inside leaf code.
// R14 (goroutine pointer) and X15 (zero register) belong to the runtime
// and must never be written.
const (
	RegRAX Reg = 0
	RegRCX Reg = 1
	RegRDX Reg = 2
	RegRBX Reg = 3
	RegRSP Reg = 4
	RegRBP Reg = 5
	RegRSI Reg = 6
	RegRDI Reg = 7
	RegR8  Reg = 8
	RegR9  Reg = 9
	RegR10 Reg = 10
	RegR11 Reg = 11
	RegR12 Reg = 12
	RegR13 Reg = 13
	RegR14 Reg = 14
	RegR15 Reg = 15
)

// Condition code constants for EmitJcc
const (
	CcE  byte = 0x04 // JE  / JZ  (ZF=1)
	CcNE byte = 0x05 // JNE / JNZ (ZF=0)
	CcL  byte = 0x0C // JL        (SF!=OF)
	CcGE byte = 0x0D // JGE       (SF=OF)
	CcLE byte = 0x0E // JLE       (ZF=1 || SF!=OF)
	CcG  byte = 0x0F // JG        (ZF=0 && SF=OF)
	CcB  byte = 0x02 // JB  (unsigned <)
	CcAE byte = 0x03 // JAE (unsigned >=)
)

// --- MOV helpers ---

// emitMovRegReg emits MOV dst, src (64-bit GPR to GPR)
func (w *Writer) emitMovRegReg(dst, src Reg) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04 // REX.R
	}
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	w.emitBytes(rex, 0x89, modrm) // MOV r/m64, r64
}

// emitMovRegReg32 emits MOV dst, src (32-bit, zeros the upper half)
func (w *Writer) emitMovRegReg32(dst, src Reg) {
	rex := byte(0x40)
	if src >= 8 {
		rex |= 0x04 // REX.R
	}
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	if rex != 0x40 {
		w.emitBytes(rex, 0x89, modrm)
	} else {
		w.emitBytes(0x89, modrm) // MOV r/m32, r32
	}
}

// EmitMovRegImm64 emits MOV reg, imm64
func (w *Writer) EmitMovRegImm64(dst Reg, imm uint64) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	w.emitBytes(rex, 0xB8|byte(dst&7))
	w.emitU64(imm)
}

// EmitMovReg32Imm32 emits MOV r32, imm32 (zeros the upper half)
func (w *Writer) EmitMovReg32Imm32(dst Reg, imm uint32) {
	if dst >= 8 {
		w.emitByte(0x41) // REX.B
	}
	w.emitByte(0xB8 | byte(dst&7))
	w.emitU32(imm)
}

// emitXorReg emits XOR r32, r32 (zeros 64-bit register via 32-bit op)
func (w *Writer) emitXorReg(r Reg) {
	if r >= 8 {
		w.emitBytes(0x45, 0x31, byte(0xC0|(byte(r&7)<<3)|byte(r&7)))
	} else {
		w.emitBytes(0x31, byte(0xC0|(byte(r)<<3)|byte(r)))
	}
}

// --- GPR ALU encoding helpers ---

// emitAluRegReg emits a REX.W ALU op: <opcode> r/m64, r64
// opcode: 0x01=ADD, 0x29=SUB, 0x39=CMP, 0x09=OR, 0x21=AND, 0x31=XOR
func (w *Writer) emitAluRegReg(opcode byte, dst, src Reg) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04
	}
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	w.emitBytes(rex, opcode, modrm)
}

// emitAluRegReg32 emits a 32-bit ALU op: <opcode> r/m32, r32
// opcode: 0x01=ADD, 0x29=SUB, 0x39=CMP, 0x85=TEST
func (w *Writer) emitAluRegReg32(opcode byte, dst, src Reg) {
	rex := byte(0x40)
	if src >= 8 {
		rex |= 0x04
	}
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	if rex != 0x40 {
		w.emitBytes(rex, opcode, modrm)
	} else {
		w.emitBytes(opcode, modrm)
	}
}

// emitOrRegReg emits OR dst, src (64-bit)
func (w *Writer) emitOrRegReg(dst, src Reg) {
	w.emitAluRegReg(0x09, dst, src) // OR r/m64, r64
}

// EmitAddReg32 emits ADD dst, src (32-bit)
func (w *Writer) EmitAddReg32(dst, src Reg) {
	w.emitAluRegReg32(0x01, dst, src) // ADD r/m32, r32
}

// EmitCmpReg32 emits CMP a, b (32-bit, flags reflect a-b)
func (w *Writer) EmitCmpReg32(a, b Reg) {
	w.emitAluRegReg32(0x39, a, b) // CMP r/m32, r32
}

// EmitTestReg32 emits TEST a, b (32-bit AND, flags only)
func (w *Writer) EmitTestReg32(a, b Reg) {
	w.emitAluRegReg32(0x85, a, b) // TEST r/m32, r32
}

// --- Memory operand helpers ---

// emitRegMemOp32 emits <opcode> dst, [base + disp] (r32, r/m32 with ModRM)
func (w *Writer) emitRegMemOp32(opcode byte, dst, base Reg, disp int32) {
	rex := byte(0x40)
	if dst >= 8 {
		rex |= 0x04 // REX.R
	}
	if base >= 8 {
		rex |= 0x01 // REX.B
	}
	if rex != 0x40 {
		w.emitByte(rex)
	}
	baseEnc := byte(base & 7)
	dstEnc := byte(dst & 7)

	if disp == 0 && baseEnc != 5 { // RBP/R13 always needs disp
		modrm := (dstEnc << 3) | baseEnc
		if baseEnc == 4 { // RSP/R12 needs SIB
			w.emitBytes(opcode, modrm, 0x24)
		} else {
			w.emitBytes(opcode, modrm)
		}
	} else if disp >= -128 && disp <= 127 {
		modrm := 0x40 | (dstEnc << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(opcode, modrm, 0x24, byte(int8(disp)))
		} else {
			w.emitBytes(opcode, modrm, byte(int8(disp)))
		}
	} else {
		modrm := 0x80 | (dstEnc << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(opcode, modrm, 0x24)
		} else {
			w.emitBytes(opcode, modrm)
		}
		w.emitU32(uint32(disp))
	}
}

// EmitAddReg32Mem emits ADD dst, [base + disp] (32-bit load-add)
func (w *Writer) EmitAddReg32Mem(dst, base Reg, disp int32) {
	w.emitRegMemOp32(0x03, dst, base, disp) // ADD r32, r/m32
}

// EmitAddReg32MemIndex emits ADD dst, [base + index*scale] (32-bit,
// SIB-addressed). scale must be 1, 2, 4 or 8; RSP cannot index.
func (w *Writer) EmitAddReg32MemIndex(dst, base, index Reg, scale uint8) {
	if index == RegRSP {
		panic("jit: rsp cannot be an index register")
	}
	var ss byte
	switch scale {
	case 1:
		ss = 0
	case 2:
		ss = 1
	case 4:
		ss = 2
	case 8:
		ss = 3
	default:
		panic("jit: invalid SIB scale")
	}
	rex := byte(0x40)
	if dst >= 8 {
		rex |= 0x04 // REX.R
	}
	if index >= 8 {
		rex |= 0x02 // REX.X
	}
	if base >= 8 {
		rex |= 0x01 // REX.B
	}
	if rex != 0x40 {
		w.emitByte(rex)
	}
	sib := (ss << 6) | (byte(index&7) << 3) | byte(base&7)
	if base&7 == 5 { // RBP/R13 base needs explicit disp8 0
		w.emitBytes(0x03, 0x44|(byte(dst&7)<<3), sib, 0x00)
	} else {
		w.emitBytes(0x03, 0x04|(byte(dst&7)<<3), sib)
	}
}

// --- Increment / decrement ---

// EmitIncReg32 emits INC r32
func (w *Writer) EmitIncReg32(r Reg) {
	if r >= 8 {
		w.emitByte(0x41) // REX.B
	}
	w.emitBytes(0xFF, 0xC0|byte(r&7)) // FF /0
}

// EmitDecReg32 emits DEC r32
func (w *Writer) EmitDecReg32(r Reg) {
	if r >= 8 {
		w.emitByte(0x41) // REX.B
	}
	w.emitBytes(0xFF, 0xC8|byte(r&7)) // FF /1
}

// --- Immediate ALU ---

// EmitAddReg64Imm8 emits ADD r64, sign-extended imm8
func (w *Writer) EmitAddReg64Imm8(dst Reg, imm int8) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	w.emitBytes(rex, 0x83, 0xC0|byte(dst&7), byte(imm)) // 83 /0 ib
}

// EmitAddReg32Imm8 emits ADD r32, sign-extended imm8
func (w *Writer) EmitAddReg32Imm8(dst Reg, imm int8) {
	if dst >= 8 {
		w.emitByte(0x41) // REX.B
	}
	w.emitBytes(0x83, 0xC0|byte(dst&7), byte(imm)) // 83 /0 ib
}

// --- Shift emitters ---

// EmitShlRegImm8 emits SHL r64, imm8 (logical shift left by immediate)
func (w *Writer) EmitShlRegImm8(dst Reg, imm uint8) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	modrm := byte(0xE0) | byte(dst&7) // /4 = SHL
	w.emitBytes(rex, 0xC1, modrm, imm)
}

// EmitShrReg32Imm8 emits SHR r32, imm8 (logical shift right by immediate)
func (w *Writer) EmitShrReg32Imm8(dst Reg, imm uint8) {
	if dst >= 8 {
		w.emitByte(0x41) // REX.B
	}
	modrm := byte(0xE8) | byte(dst&7) // /5 = SHR
	w.emitBytes(0xC1, modrm, imm)
}

// --- Control flow ---

// EmitJcc emits a conditional jump with a rel32 fixup.
func (w *Writer) EmitJcc(cc byte, labelID uint8) {
	w.emitBytes(0x0F, 0x80|cc) // Jcc rel32
	w.AddFixup(labelID, 4, true)
	w.emitU32(0) // placeholder
}

// EmitJmp emits an unconditional JMP rel32.
func (w *Writer) EmitJmp(labelID uint8) {
	w.emitByte(0xE9) // JMP rel32
	w.AddFixup(labelID, 4, true)
	w.emitU32(0) // placeholder
}

// EmitRet emits RET
func (w *Writer) EmitRet() {
	w.emitByte(0xC3)
}

// --- Timestamp counter ---

// EmitRdtsc emits RDTSC (cycle count into EDX:EAX)
func (w *Writer) EmitRdtsc() {
	w.emitBytes(0x0F, 0x31)
}
