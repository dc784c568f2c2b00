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

// newCycleCounter generates a RDTSC reader through the engine's own
// emitter and region machinery, so the very first generated code a
// process runs is the clock it profiles with. Returns the reader and
// its region, which the caller owns.
func newCycleCounter() (func() uint64, *Region, error) {
	w := NewWriter(16)
	w.EmitRdtsc()                    // EDX:EAX = tsc
	w.EmitShlRegImm8(RegRDX, 32)     // RDX <<= 32
	w.emitOrRegReg(RegRAX, RegRDX)   // RAX = full 64-bit count
	w.EmitRet()
	w.ResolveFixups()
	code, err := w.Bytes()
	if err != nil {
		return nil, nil, err
	}
	r, err := AllocRegion(len(code))
	if err != nil {
		return nil, nil, err
	}
	copy(r.Buf(), code)
	if err := r.Seal(); err != nil {
		r.Release()
		return nil, nil, err
	}
	return r.CounterFunc(), r, nil
}
