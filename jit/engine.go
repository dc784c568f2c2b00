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
import "sort"
import "sync"
import "sync/atomic"
import "github.com/google/uuid"
import "github.com/launix-de/NonLockingReadMap"
import "github.com/launix-de/hotpath/prof"

/*

Engine

The engine owns one code generation session: the profile table, the
operation registry and every byte of executable memory. Operations are
registered once, called from any goroutine, and switch from their Go
baseline to generated code when the profiler promotes them.

Executable memory lifetime: regions live until Close. Reset republishes
the Go baselines and retires the generated regions instead of unmapping
them, because a concurrent caller may still sit inside the old code.
Close releases everything; afterwards no operation may be called.

*/

type Engine struct {
	Session uuid.UUID
	Table   *prof.Table

	ops NonLockingReadMap.NonLockingReadMap[Operation, string]

	counterRegion   *Region
	fallbackCounter func() uint64

	// executable memory accounting for snapshots
	regionCount atomic.Int64
	execBytes   atomic.Int64
	codeBytes   atomic.Int64

	profileCompiled atomic.Bool

	mu      sync.Mutex // serializes register/compile/reset/close
	retired []*Region
	closed  bool
}

// NewEngine creates an engine with a fresh profile table. When the
// platform has a native cycle counter, it is generated right here and
// installed; otherwise the table keeps its monotonic clock.
func NewEngine() *Engine {
	e := &Engine{
		Session: prof.NewID(),
		Table:   prof.NewTable(),
		ops:     NonLockingReadMap.New[Operation, string](),
	}
	e.profileCompiled.Store(prof.Settings.ProfileCompiled)
	e.fallbackCounter = e.Table.Counter
	if fn, r, err := newCycleCounter(); err == nil {
		e.Table.Counter = fn
		e.counterRegion = r
		e.trackRegion(r)
	}
	e.Table.Calibrate()
	return e
}

func (e *Engine) trackRegion(r *Region) {
	e.regionCount.Add(1)
	e.execBytes.Add(int64(r.Size()))
	e.codeBytes.Add(int64(r.CodeLen()))
}

func (e *Engine) untrackRegion(r *Region) {
	e.regionCount.Add(-1)
	e.execBytes.Add(-int64(r.Size()))
	e.codeBytes.Add(-int64(r.CodeLen()))
}

// Register declares an operation under name, backed by the named
// kernel. imm parameterizes kernels that carry an immediate (const);
// the others ignore it. Registering the same name again with the same
// kernel and immediate returns the existing operation; a differing
// registration is a SignatureMismatch.
func (e *Engine) Register(name string, kernelName string, imm int32) (*Operation, error) {
	k := KernelByName(kernelName)
	if k == nil {
		return nil, fmt.Errorf("jit: unknown kernel %s", kernelName)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("jit: engine is closed")
	}
	if existing := e.ops.Get(name); existing != nil {
		if existing.Kernel != k || existing.Imm != imm {
			return nil, &SignatureMismatch{Op: name, Want: existing.Kernel.Sig,
				Got: fmt.Sprintf("conflicting registration as %s", k.Name)}
		}
		return existing, nil
	}
	op := &Operation{
		Name:   name,
		Kernel: k,
		Imm:    imm,
		engine: e,
		entry:  e.Table.Entry(name),
	}
	t := k.baseline(imm)
	op.publish(&t)
	e.ops.Set(op)
	return op, nil
}

// Get returns the operation registered under name, or nil.
func (e *Engine) Get(name string) *Operation {
	return e.ops.Get(name)
}

// Operations returns all registered operations sorted by name.
func (e *Engine) Operations() []*Operation {
	all := e.ops.GetAll()
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all
}

// Compile generates native code for op, self-checks it against the Go
// baseline and atomically switches the call target. Compiling an
// already compiled operation is a no-op.
func (e *Engine) Compile(op *Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("jit: engine is closed")
	}
	if op.load().compiled {
		return nil
	}
	code, err := op.Kernel.Generate(op.Imm)
	if err != nil {
		return err
	}
	r, err := AllocRegion(len(code))
	if err != nil {
		return err
	}
	copy(r.Buf(), code)
	if err := r.Seal(); err != nil {
		r.Release()
		return err
	}

	t := target{compiled: true}
	switch op.Kernel.Sig {
	case SigConst:
		t.fn0 = r.ConstFunc()
	case SigBinary:
		t.fn2 = r.BinaryFunc()
	case SigArray:
		t.fnArr = r.ArrayFunc()
	}
	if prof.Settings.SelfCheck {
		if err := op.selfCheck(&t); err != nil {
			r.Release()
			return err
		}
	}

	op.region = r
	e.trackRegion(r)
	op.publish(&t)
	atomic.StoreUint32(&op.failed, 0)
	e.Table.MarkCompiled(op.entry, uint64(len(code)))
	if prof.Settings.Trace {
		fmt.Println("jit: compiled", op.Name, "into", len(code), "bytes")
	}
	return nil
}

// CompileAll compiles every registered operation, keeping the first
// error but continuing with the rest.
func (e *Engine) CompileAll() error {
	var firstErr error
	for _, op := range e.Operations() {
		if err := e.Compile(op); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reset republishes the Go baselines, clears all statistics and
// re-arms promotion. Generated regions are retired, not unmapped: a
// concurrent caller may still execute the old code, so the memory
// stays mapped until Close.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for _, op := range e.ops.GetAll() {
		t := op.Kernel.baseline(op.Imm)
		op.publish(&t)
		atomic.StoreUint32(&op.failed, 0)
		if op.region != nil {
			e.codeBytes.Add(-int64(op.region.CodeLen()))
			e.retired = append(e.retired, op.region)
			op.region = nil
		}
	}
	e.Table.Reset()
}

// Close republishes baselines, releases all executable memory and
// restores the fallback counter. No generated function may be called
// afterwards; operations keep working on their Go baselines.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, op := range e.ops.GetAll() {
		t := op.Kernel.baseline(op.Imm)
		op.publish(&t)
		if op.region != nil {
			e.untrackRegion(op.region)
			op.region.Release()
			op.region = nil
		}
	}
	for _, r := range e.retired {
		e.regionCount.Add(-1)
		e.execBytes.Add(-int64(r.Size()))
		r.Release()
	}
	e.retired = nil
	if e.counterRegion != nil {
		e.Table.Counter = e.fallbackCounter
		e.untrackRegion(e.counterRegion)
		e.counterRegion.Release()
		e.counterRegion = nil
	}
}

// SnapshotExtra fills the engine-level figures into a snapshot; pass
// it to prof.NewSampler or Table.Take.
func (e *Engine) SnapshotExtra(s *prof.Snapshot) {
	s.Session = e.Session.String()
	s.ExecRegions = int(e.regionCount.Load())
	s.ExecBytes = uint64(e.execBytes.Load())
	s.CodeBytes = uint64(e.codeBytes.Load())
}

// ApplySettings pushes live-changeable settings into the engine and
// its profile table.
func (e *Engine) ApplySettings(s prof.SettingsT) {
	e.profileCompiled.Store(s.ProfileCompiled)
	e.Table.ApplySettings(s)
}
