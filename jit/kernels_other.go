//go:build !amd64

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

// TODO: create emitters for arm64, too

// nativeBackend reports whether this build can generate machine code.
// Without it every operation stays on its Go baseline; Generate
// refuses before any emitter could run.
const nativeBackend = false

func emitConst(w *Writer, imm int32) {
	panic("jit: no native backend")
}

func emitAdd(w *Writer, _ int32) {
	panic("jit: no native backend")
}

func emitArraySum(w *Writer, _ int32) {
	panic("jit: no native backend")
}

func emitArraySum4(w *Writer, _ int32) {
	panic("jit: no native backend")
}
