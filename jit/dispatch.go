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
import "sync/atomic"
import "unsafe"
import "github.com/launix-de/hotpath/prof"

/*

Dispatch

Every operation carries an atomically swappable call target. Callers
load the current target, run it under measurement and afterwards check
whether the profiler just promoted the entry; the promoting call
compiles synchronously, so the next call already runs native code.

The target pointer is the only synchronization on the hot path: one
atomic load per call, no locks, and a loaded target stays callable for
the whole call because regions are never unmapped before Close.

*/

// Operation is one registered call site: a name, the kernel behind it
// and the current call target.
type Operation struct {
	Name   string
	Kernel *Kernel
	Imm    int32

	engine *Engine
	entry  *prof.Entry
	region *Region

	tgt    unsafe.Pointer // *target
	failed uint32         // 1 after a failed auto-compile, stops retries
}

// GetKey implements the registry lookup key.
func (op Operation) GetKey() string {
	return op.Name
}

// ComputeSize implements the registry size accounting.
func (op Operation) ComputeSize() uint {
	size := uint(unsafe.Sizeof(op)) + uint(len(op.Name))
	if op.region != nil {
		size += uint(op.region.Size())
	}
	return size
}

func (op *Operation) publish(t *target) {
	atomic.StorePointer(&op.tgt, unsafe.Pointer(t))
}

func (op *Operation) load() *target {
	return (*target)(atomic.LoadPointer(&op.tgt))
}

// Compiled reports whether calls currently run generated code.
func (op *Operation) Compiled() bool {
	return op.load().compiled
}

// Entry exposes the profile entry behind this operation.
func (op *Operation) Entry() *prof.Entry {
	return op.entry
}

// Region exposes the generated code region, nil while baseline.
func (op *Operation) Region() *Region {
	return op.region
}

// maybeCompile compiles when the profiler just flagged the entry as a
// candidate. A failed attempt arms the failed latch so a hot loop does
// not hammer the compiler; an explicit Engine.Compile resets it.
func (op *Operation) maybeCompile() {
	if atomic.LoadUint32(&op.failed) != 0 ||
		!op.entry.Candidate.Load() || op.entry.Compiled.Load() {
		return
	}
	if err := op.engine.Compile(op); err != nil {
		atomic.StoreUint32(&op.failed, 1)
		if prof.Settings.Trace {
			fmt.Println("jit: compiling", op.Name, "failed:", err)
		}
	}
}

// CallConst runs a constant operation through profiling dispatch.
func (op *Operation) CallConst() int32 {
	t := op.load()
	if t.fn0 == nil {
		panic(&SignatureMismatch{Op: op.Name, Want: op.Kernel.Sig, Got: SigConst.String()})
	}
	if t.compiled && !op.engine.profileCompiled.Load() {
		return t.fn0()
	}
	var r int32
	op.engine.Table.Measure(op.entry, func() {
		r = t.fn0()
	})
	if !t.compiled {
		op.maybeCompile()
	}
	return r
}

// CallBinary runs a two-operand operation through profiling dispatch.
func (op *Operation) CallBinary(a, b int32) int32 {
	t := op.load()
	if t.fn2 == nil {
		panic(&SignatureMismatch{Op: op.Name, Want: op.Kernel.Sig, Got: SigBinary.String()})
	}
	if t.compiled && !op.engine.profileCompiled.Load() {
		return t.fn2(a, b)
	}
	var r int32
	op.engine.Table.Measure(op.entry, func() {
		r = t.fn2(a, b)
	})
	if !t.compiled {
		op.maybeCompile()
	}
	return r
}

// CallArray runs an array operation over data through profiling
// dispatch. An empty slice never reaches the generated code's pointer.
func (op *Operation) CallArray(data []int32) int32 {
	t := op.load()
	if t.fnArr == nil {
		panic(&SignatureMismatch{Op: op.Name, Want: op.Kernel.Sig, Got: SigArray.String()})
	}
	var p *int32
	if len(data) > 0 {
		p = &data[0]
	}
	n := int32(len(data))
	if t.compiled && !op.engine.profileCompiled.Load() {
		return t.fnArr(p, n)
	}
	var r int32
	op.engine.Table.Measure(op.entry, func() {
		r = t.fnArr(p, n)
	})
	if !t.compiled {
		op.maybeCompile()
	}
	return r
}

// selfCheck compares freshly generated code against the Go baseline on
// fixed probes before any caller can reach it.
func (op *Operation) selfCheck(t *target) error {
	base := op.Kernel.baseline(op.Imm)
	switch op.Kernel.Sig {
	case SigConst:
		if got, want := t.fn0(), base.fn0(); got != want {
			return fmt.Errorf("jit: self check of %s failed: got %d, want %d", op.Name, got, want)
		}
	case SigBinary:
		probes := [][2]int32{{0, 0}, {10, 32}, {-5, 3}, {2147483647, 1}}
		for _, pr := range probes {
			if got, want := t.fn2(pr[0], pr[1]), base.fn2(pr[0], pr[1]); got != want {
				return fmt.Errorf("jit: self check of %s failed for (%d,%d): got %d, want %d",
					op.Name, pr[0], pr[1], got, want)
			}
		}
	case SigArray:
		vec := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		for _, n := range []int32{0, 1, 3, 4, 7, 10} {
			var p *int32
			if n > 0 {
				p = &vec[0]
			}
			if got, want := t.fnArr(p, n), base.fnArr(p, n); got != want {
				return fmt.Errorf("jit: self check of %s failed for count %d: got %d, want %d",
					op.Name, n, got, want)
			}
		}
	}
	return nil
}

// Invoke calls an operation by name with loosely typed arguments: none
// for const kernels, two integers for binary kernels, one []int32 for
// array kernels. The shell and the SQL frontend route through here.
func (e *Engine) Invoke(name string, args ...any) (int32, error) {
	op := e.Get(name)
	if op == nil {
		return 0, fmt.Errorf("jit: unknown operation %s", name)
	}
	switch op.Kernel.Sig {
	case SigConst:
		if len(args) != 0 {
			return 0, &SignatureMismatch{Op: name, Want: SigConst,
				Got: fmt.Sprintf("%d arguments", len(args))}
		}
		return op.CallConst(), nil
	case SigBinary:
		if len(args) != 2 {
			return 0, &SignatureMismatch{Op: name, Want: SigBinary,
				Got: fmt.Sprintf("%d arguments", len(args))}
		}
		a, oka := toInt32(args[0])
		b, okb := toInt32(args[1])
		if !oka || !okb {
			return 0, &SignatureMismatch{Op: name, Want: SigBinary, Got: "non-integer arguments"}
		}
		return op.CallBinary(a, b), nil
	case SigArray:
		if len(args) != 1 {
			return 0, &SignatureMismatch{Op: name, Want: SigArray,
				Got: fmt.Sprintf("%d arguments", len(args))}
		}
		data, ok := args[0].([]int32)
		if !ok {
			return 0, &SignatureMismatch{Op: name, Want: SigArray, Got: fmt.Sprintf("%T", args[0])}
		}
		return op.CallArray(data), nil
	}
	return 0, fmt.Errorf("jit: %s has unhandled signature", name)
}

func toInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int:
		return int32(x), true
	case int32:
		return x, true
	case int64:
		return int32(x), true
	}
	return 0, false
}
