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
import "runtime"
import "unsafe"

// Signature enumerates the call shapes generated code can have.
type Signature uint8

const (
	SigConst  Signature = iota // func() int32
	SigBinary                  // func(a, b int32) int32
	SigArray                   // func(p *int32, n int32) int32
)

func (s Signature) String() string {
	switch s {
	case SigConst:
		return "() -> int32"
	case SigBinary:
		return "(int32, int32) -> int32"
	case SigArray:
		return "(*int32, int32) -> int32"
	}
	return "unknown"
}

// target bundles the callable of one operation. Exactly one of the
// function fields is set, matching the kernel signature. Dispatch
// publishes a new target atomically when an operation compiles, so
// in-flight callers always see a complete pair of fn and flag.
type target struct {
	fn0      func() int32
	fn2      func(a, b int32) int32
	fnArr    func(p *int32, n int32) int32
	compiled bool
}

// Kernel describes one entry of the fixed code generation menu: the
// call signature, a portable Go baseline and a native emitter.
type Kernel struct {
	Name    string
	Desc    string
	Sig     Signature
	MaxCode int // upper bound for the emitted code size

	baseline func(imm int32) target
	emit     func(w *Writer, imm int32) // same names per architecture file
}

// Kernels is the fixed menu of generatable code shapes.
var Kernels = []*Kernel{
	{
		Name:    "const",
		Desc:    "return a fixed int32",
		Sig:     SigConst,
		MaxCode: 16,
		baseline: func(imm int32) target {
			return target{fn0: func() int32 { return imm }}
		},
		emit: emitConst,
	},
	{
		Name:    "add",
		Desc:    "add two int32",
		Sig:     SigBinary,
		MaxCode: 16,
		baseline: func(int32) target {
			return target{fn2: addBaseline}
		},
		emit: emitAdd,
	},
	{
		Name:    "array_sum",
		Desc:    "sum an int32 array",
		Sig:     SigArray,
		MaxCode: 48,
		baseline: func(int32) target {
			return target{fnArr: arraySumBaseline}
		},
		emit: emitArraySum,
	},
	{
		Name:    "array_sum4",
		Desc:    "sum an int32 array, unrolled by four",
		Sig:     SigArray,
		MaxCode: 96,
		baseline: func(int32) target {
			return target{fnArr: arraySum4Baseline}
		},
		emit: emitArraySum4,
	},
}

// KernelByName returns the menu entry for name, or nil.
func KernelByName(name string) *Kernel {
	for _, k := range Kernels {
		if k.Name == name {
			return k
		}
	}
	return nil
}

// Generate emits the kernel's native code into a fresh writer and
// returns the finished bytes. The writer is sized from MaxCode, so an
// emitter outgrowing its declared bound surfaces as BufferOverflow
// instead of corrupt code.
func (k *Kernel) Generate(imm int32) ([]byte, error) {
	if !nativeBackend {
		return nil, fmt.Errorf("jit: no native backend for %s", runtime.GOARCH)
	}
	w := NewWriter(k.MaxCode)
	k.emit(w, imm)
	w.ResolveFixups()
	return w.Bytes()
}

// --- Go baselines ---

func addBaseline(a, b int32) int32 {
	return a + b
}

func arraySumBaseline(p *int32, n int32) int32 {
	if p == nil || n <= 0 {
		return 0
	}
	var sum int32
	for _, v := range unsafe.Slice(p, n) {
		sum += v
	}
	return sum
}

// arraySum4Baseline mirrors the unrolled kernel's shape: blocks of
// four, then the tail one by one.
func arraySum4Baseline(p *int32, n int32) int32 {
	if p == nil || n <= 0 {
		return 0
	}
	a := unsafe.Slice(p, n)
	var sum int32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		sum += a[i] + a[i+1] + a[i+2] + a[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i]
	}
	return sum
}
