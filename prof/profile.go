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
package prof

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

/*

cycle profiler

Every named operation owns exactly one Entry. The dispatcher routes each
baseline call through Measure, which reads the cycle counter around the
call and feeds the difference into Record. Record applies the promotion
policy: once an operation has been called often enough AND has burned
enough cycles, it becomes a compilation candidate. The engine marks it
compiled after code generation succeeded.

State per operation only ever advances BASELINE -> CANDIDATE -> COMPILED
(never backward, except through an explicit Reset).

*/

// Entry holds the per-operation statistics. All counters are atomics so
// concurrent callers of the same operation stay safe without a lock on
// the hot path.
type Entry struct {
	Name string

	Calls       atomic.Uint64
	TotalCycles atomic.Uint64
	MinCycles   atomic.Uint64 // starts at max uint64 so the first sample lowers it
	MaxCycles   atomic.Uint64
	LastCycles  atomic.Uint64
	ChildCycles atomic.Uint64 // cycles spent inside nested measured operations

	// counters of the compiled phase, for honest speedup figures
	CompiledCalls  atomic.Uint64
	CompiledCycles atomic.Uint64
	// baseline counters frozen at the moment of compilation
	BaselineCalls  atomic.Uint64
	BaselineCycles atomic.Uint64

	CodeBytes atomic.Uint64 // size of the generated code, 0 while baseline

	Candidate atomic.Bool
	Compiled  atomic.Bool
}

// Status returns the dispatch state as the report prints it.
func (e *Entry) Status() string {
	if e.Compiled.Load() {
		return "COMPILED"
	}
	if e.Candidate.Load() {
		return "CANDIDATE"
	}
	return "BASELINE"
}

// AvgCycles returns total cycles divided by calls, 0 for unmeasured entries.
func (e *Entry) AvgCycles() uint64 {
	calls := e.Calls.Load()
	if calls == 0 {
		return 0
	}
	return e.TotalCycles.Load() / calls
}

// SelfCycles returns cycles spent in the operation itself, excluding
// nested measured operations. Only meaningful with TrackSelfTime on.
func (e *Entry) SelfCycles() uint64 {
	total := e.TotalCycles.Load()
	child := e.ChildCycles.Load()
	if child > total {
		return 0
	}
	return total - child
}

// Speedup compares the frozen baseline-phase average against the
// compiled-phase average. Returns 0 until both phases have samples.
func (e *Entry) Speedup() float64 {
	bc := e.BaselineCalls.Load()
	cc := e.CompiledCalls.Load()
	if bc == 0 || cc == 0 {
		return 0
	}
	baseAvg := float64(e.BaselineCycles.Load()) / float64(bc)
	compAvg := float64(e.CompiledCycles.Load()) / float64(cc)
	if compAvg == 0 {
		return 0
	}
	return baseAvg / compAvg
}

func (e *Entry) resetStats() {
	e.Calls.Store(0)
	e.TotalCycles.Store(0)
	e.MinCycles.Store(^uint64(0))
	e.MaxCycles.Store(0)
	e.LastCycles.Store(0)
	e.ChildCycles.Store(0)
	e.CompiledCalls.Store(0)
	e.CompiledCycles.Store(0)
	e.BaselineCalls.Store(0)
	e.BaselineCycles.Store(0)
	e.CodeBytes.Store(0)
	e.Candidate.Store(false)
	e.Compiled.Store(false)
}

// Table is the per-engine profile table keyed by operation name.
// The tree is only touched at registration and report time; hot-path
// callers hold their *Entry directly and never look it up again.
type Table struct {
	mu   sync.Mutex
	coll *collate.Collator
	tree *btree.BTreeG[*Entry]

	CallsThreshold  atomic.Uint64
	CyclesThreshold atomic.Uint64
	TrackSelf       atomic.Bool

	// Counter reads the cycle source. The engine installs a generated
	// rdtsc reader when the platform supports one; the default counts
	// monotonic nanoseconds so promotion still works everywhere.
	Counter func() uint64

	overhead uint64 // calibrated cost of one empty measurement
}

var processStart = time.Now()

func clockCounter() uint64 {
	return uint64(time.Since(processStart))
}

// NewTable creates an empty profile table with thresholds from Settings.
func NewTable() *Table {
	coll := collate.New(language.English)
	t := &Table{
		coll: coll,
		tree: btree.NewG[*Entry](8, func(a, b *Entry) bool {
			return coll.CompareString(a.Name, b.Name) < 0
		}),
		Counter: clockCounter,
	}
	t.CallsThreshold.Store(Settings.CallsThreshold)
	t.CyclesThreshold.Store(Settings.CyclesThreshold)
	t.TrackSelf.Store(Settings.TrackSelfTime)
	return t
}

// Entry returns the stats entry for name, creating it on first use.
func (t *Table) Entry(name string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.tree.Get(&Entry{Name: name}); ok {
		return e
	}
	e := &Entry{Name: name}
	e.MinCycles.Store(^uint64(0))
	t.tree.ReplaceOrInsert(e)
	return e
}

// Lookup returns the entry for name or nil.
func (t *Table) Lookup(name string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.tree.Get(&Entry{Name: name}); ok {
		return e
	}
	return nil
}

// Ascend iterates all entries in collation order.
func (t *Table) Ascend(fn func(*Entry) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.Ascend(func(e *Entry) bool {
		return fn(e)
	})
}

// Len returns the number of registered entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Len()
}

// Record feeds one measured call into the entry and applies the
// promotion policy: not yet compiled, not yet candidate, calls and
// cumulative cycles both at or above their thresholds.
func (t *Table) Record(e *Entry, elapsed uint64) {
	calls := e.Calls.Add(1)
	total := e.TotalCycles.Add(elapsed)
	e.LastCycles.Store(elapsed)
	for {
		min := e.MinCycles.Load()
		if elapsed >= min || e.MinCycles.CompareAndSwap(min, elapsed) {
			break
		}
	}
	for {
		max := e.MaxCycles.Load()
		if elapsed <= max || e.MaxCycles.CompareAndSwap(max, elapsed) {
			break
		}
	}
	if e.Compiled.Load() {
		e.CompiledCalls.Add(1)
		e.CompiledCycles.Add(elapsed)
		return
	}
	if !e.Candidate.Load() &&
		calls >= t.CallsThreshold.Load() &&
		total >= t.CyclesThreshold.Load() {
		e.Candidate.Store(true)
	}
}

// Measure wraps a baseline call: counter before, counter after, record
// the difference minus the calibrated measurement overhead.
func (t *Table) Measure(e *Entry, thunk func()) {
	if t.TrackSelf.Load() {
		t.measureFramed(e, thunk)
		return
	}
	start := t.Counter()
	thunk()
	elapsed := t.Counter() - start
	if elapsed > t.overhead {
		elapsed -= t.overhead
	} else {
		elapsed = 0
	}
	t.Record(e, elapsed)
}

// Calibrate determines the cost of an empty measurement so Measure can
// subtract it. Takes the smallest delta over many rounds to avoid
// counting interrupts into the overhead.
func (t *Table) Calibrate() {
	best := ^uint64(0)
	for i := 0; i < 512; i++ {
		a := t.Counter()
		b := t.Counter()
		if d := b - a; d < best {
			best = d
		}
	}
	t.overhead = best
}

// Overhead returns the calibrated per-measurement overhead in cycles.
func (t *Table) Overhead() uint64 {
	return t.overhead
}

// MarkCompiled flips the entry to COMPILED, clears the candidate flag
// and freezes the baseline counters for later speedup reporting.
func (t *Table) MarkCompiled(e *Entry, codeBytes uint64) {
	e.BaselineCalls.Store(e.Calls.Load())
	e.BaselineCycles.Store(e.TotalCycles.Load())
	e.CodeBytes.Store(codeBytes)
	e.Compiled.Store(true)
	e.Candidate.Store(false)
}

// Reset clears all statistics and re-arms promotion for every entry.
// Entries themselves survive so held pointers stay valid.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.Ascend(func(e *Entry) bool {
		e.resetStats()
		return true
	})
}

// ApplySettings pushes threshold and flag changes into the live table.
func (t *Table) ApplySettings(s SettingsT) {
	t.CallsThreshold.Store(s.CallsThreshold)
	t.CyclesThreshold.Store(s.CyclesThreshold)
	t.TrackSelf.Store(s.TrackSelfTime)
}
