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

import "fmt"
import "io"

func hexListing(w io.Writer, code []byte) {
	for i := 0; i < len(code); i += 8 {
		end := i + 8
		if end > len(code) {
			end = len(code)
		}
		fmt.Fprintf(w, "  %04x:", i)
		for _, b := range code[i:end] {
			fmt.Fprintf(w, " %02x", b)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "disassemble: echo '%x' | xxd -r -p | objdump -D -b binary -m i386:x86-64 -\n", code)
}

// Dump writes a hex listing of the operation's code. Compiled
// operations dump their live region; baseline ones generate the bytes
// transiently without touching executable memory.
func (op *Operation) Dump(w io.Writer) error {
	if op.region != nil {
		code := op.region.Code()
		fmt.Fprintf(w, "%s: %d bytes live (%s kernel, %s)\n",
			op.Name, len(code), op.Kernel.Name, op.Kernel.Sig)
		hexListing(w, code)
		return nil
	}
	code, err := op.Kernel.Generate(op.Imm)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d bytes preview (%s kernel, %s)\n",
		op.Name, len(code), op.Kernel.Name, op.Kernel.Sig)
	hexListing(w, code)
	return nil
}

// DumpKernel writes the hex listing of freshly generated code for a
// menu kernel.
func DumpKernel(w io.Writer, k *Kernel, imm int32) error {
	code, err := k.Generate(imm)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d bytes (%s)\n", k.Name, len(code), k.Sig)
	hexListing(w, code)
	return nil
}
