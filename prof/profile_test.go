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
	"testing"
)

// stubCounter replaces the table's cycle source with a deterministic
// one that advances by step on every read. The returned pointer lets a
// thunk burn fake cycles itself.
func stubCounter(t *Table, step uint64) *uint64 {
	var tick uint64
	t.Counter = func() uint64 { tick += step; return tick }
	return &tick
}

// assertCycles checks a single cycle figure.
func assertCycles(t *testing.T, got, expected uint64, ctx string) {
	t.Helper()
	if got != expected {
		t.Errorf("%s: got %d cycles, expected %d", ctx, got, expected)
	}
}

// TestEntryIdentity tests that entries are created once and found again.
func TestEntryIdentity(t *testing.T) {
	tbl := NewTable()
	e := tbl.Entry("scan")
	if tbl.Entry("scan") != e {
		t.Error("Entry must return the same entry for the same name")
	}
	if tbl.Lookup("scan") != e {
		t.Error("Lookup must find a created entry")
	}
	if tbl.Lookup("gone") != nil {
		t.Error("Lookup must return nil for unknown names")
	}
	if tbl.Len() != 1 {
		t.Errorf("table holds %d entries, expected 1", tbl.Len())
	}
	if e.MinCycles.Load() != ^uint64(0) {
		t.Error("a fresh entry must start with the min sentinel")
	}
	if e.Status() != "BASELINE" {
		t.Errorf("fresh entry status is %s, expected BASELINE", e.Status())
	}
}

// TestRecordStats tests the per-call statistics bookkeeping.
func TestRecordStats(t *testing.T) {
	tbl := NewTable()
	e := tbl.Entry("scan")
	tbl.Record(e, 30)
	tbl.Record(e, 10)
	tbl.Record(e, 20)
	assertCycles(t, e.Calls.Load(), 3, "calls")
	assertCycles(t, e.TotalCycles.Load(), 60, "total")
	assertCycles(t, e.MinCycles.Load(), 10, "min")
	assertCycles(t, e.MaxCycles.Load(), 30, "max")
	assertCycles(t, e.LastCycles.Load(), 20, "last")
	assertCycles(t, e.AvgCycles(), 20, "avg")
}

// TestAvgCyclesEmpty tests that an unmeasured entry averages to zero.
func TestAvgCyclesEmpty(t *testing.T) {
	tbl := NewTable()
	if avg := tbl.Entry("idle").AvgCycles(); avg != 0 {
		t.Errorf("unmeasured entry averages %d, expected 0", avg)
	}
}

// TestPromotionNeedsBothThresholds tests that an entry only becomes a
// candidate once calls and cumulative cycles both reach their limits.
func TestPromotionNeedsBothThresholds(t *testing.T) {
	tbl := NewTable()
	tbl.CallsThreshold.Store(3)
	tbl.CyclesThreshold.Store(100)

	// plenty of cycles, not enough calls
	hot := tbl.Entry("hot")
	tbl.Record(hot, 200)
	tbl.Record(hot, 200)
	if hot.Candidate.Load() {
		t.Error("two calls must not promote with a threshold of three")
	}
	tbl.Record(hot, 1)
	if !hot.Candidate.Load() {
		t.Error("the third call must promote")
	}
	if hot.Status() != "CANDIDATE" {
		t.Errorf("status is %s, expected CANDIDATE", hot.Status())
	}

	// plenty of calls, not enough cycles
	tbl.CyclesThreshold.Store(1000)
	cold := tbl.Entry("cold")
	tbl.Record(cold, 10)
	tbl.Record(cold, 10)
	tbl.Record(cold, 10)
	if cold.Candidate.Load() {
		t.Error("30 cycles must not promote with a threshold of 1000")
	}
	tbl.Record(cold, 970)
	if !cold.Candidate.Load() {
		t.Error("reaching the cycle threshold must promote")
	}
}

// TestCompiledPhase tests that compilation freezes the baseline
// counters and routes later samples into the compiled counters.
func TestCompiledPhase(t *testing.T) {
	tbl := NewTable()
	e := tbl.Entry("scan")
	tbl.Record(e, 100)
	tbl.Record(e, 100)

	tbl.MarkCompiled(e, 6)
	if e.Status() != "COMPILED" {
		t.Errorf("status is %s, expected COMPILED", e.Status())
	}
	assertCycles(t, e.BaselineCalls.Load(), 2, "frozen baseline calls")
	assertCycles(t, e.BaselineCycles.Load(), 200, "frozen baseline cycles")
	assertCycles(t, e.CodeBytes.Load(), 6, "code bytes")
	if e.Candidate.Load() {
		t.Error("compiling must clear the candidate flag")
	}

	tbl.Record(e, 10)
	tbl.Record(e, 10)
	assertCycles(t, e.Calls.Load(), 4, "overall calls")
	assertCycles(t, e.CompiledCalls.Load(), 2, "compiled calls")
	assertCycles(t, e.CompiledCycles.Load(), 20, "compiled cycles")
	assertCycles(t, e.BaselineCalls.Load(), 2, "baseline calls stay frozen")
	if e.Candidate.Load() {
		t.Error("a compiled entry must never become a candidate again")
	}
	if got := e.Speedup(); got != 10.0 {
		t.Errorf("speedup is %v, expected 10.0", got)
	}
}

// TestSpeedupUnsampled tests that the speedup stays zero until both
// phases carry samples.
func TestSpeedupUnsampled(t *testing.T) {
	tbl := NewTable()
	e := tbl.Entry("scan")
	if e.Speedup() != 0 {
		t.Error("fresh entry must report no speedup")
	}
	tbl.Record(e, 100)
	tbl.MarkCompiled(e, 6)
	if e.Speedup() != 0 {
		t.Error("speedup needs compiled samples")
	}
	tbl.Record(e, 0) // compiled call below counter resolution
	if e.Speedup() != 0 {
		t.Error("zero compiled cycles must not divide")
	}
}

// TestSelfCycles tests child cycle subtraction including the clamp.
func TestSelfCycles(t *testing.T) {
	var e Entry
	e.TotalCycles.Store(100)
	e.ChildCycles.Store(30)
	assertCycles(t, e.SelfCycles(), 70, "self")
	e.ChildCycles.Store(130)
	assertCycles(t, e.SelfCycles(), 0, "clamped self")
}

// TestMeasure tests the counter based measurement with a deterministic
// cycle source.
func TestMeasure(t *testing.T) {
	tbl := NewTable()
	tick := stubCounter(tbl, 7)
	e := tbl.Entry("scan")

	tbl.Measure(e, func() {})
	assertCycles(t, e.TotalCycles.Load(), 7, "empty thunk")

	tbl.Measure(e, func() { *tick += 100 })
	assertCycles(t, e.LastCycles.Load(), 107, "thunk burning 100")
	assertCycles(t, e.Calls.Load(), 2, "measured calls")
}

// TestCalibrate tests that the calibrated overhead is subtracted from
// later measurements and clamps at zero.
func TestCalibrate(t *testing.T) {
	tbl := NewTable()
	tick := stubCounter(tbl, 7)
	tbl.Calibrate()
	if tbl.Overhead() != 7 {
		t.Fatalf("calibrated overhead is %d, expected 7", tbl.Overhead())
	}
	e := tbl.Entry("scan")
	tbl.Measure(e, func() { *tick += 100 })
	assertCycles(t, e.TotalCycles.Load(), 100, "overhead subtracted")
	tbl.Measure(e, func() {})
	assertCycles(t, e.LastCycles.Load(), 0, "empty thunk clamps to zero")
}

// TestNestedMeasure tests child cycle attribution across nested
// measured calls with self time tracking on.
func TestNestedMeasure(t *testing.T) {
	tbl := NewTable()
	stubCounter(tbl, 10)
	tbl.TrackSelf.Store(true)
	outer := tbl.Entry("outer")
	inner := tbl.Entry("inner")

	tbl.Measure(outer, func() {
		tbl.Measure(inner, func() {})
	})

	assertCycles(t, inner.TotalCycles.Load(), 10, "inner total")
	assertCycles(t, outer.TotalCycles.Load(), 30, "outer total")
	assertCycles(t, outer.ChildCycles.Load(), 10, "outer child")
	assertCycles(t, outer.SelfCycles(), 20, "outer self")
	assertCycles(t, inner.SelfCycles(), 10, "inner self")
}

// TestTableReset tests that a reset clears statistics but keeps entry
// pointers valid.
func TestTableReset(t *testing.T) {
	tbl := NewTable()
	e := tbl.Entry("scan")
	tbl.Record(e, 50)
	tbl.MarkCompiled(e, 6)
	tbl.Reset()

	if tbl.Lookup("scan") != e {
		t.Fatal("reset must keep the entry")
	}
	assertCycles(t, e.Calls.Load(), 0, "calls after reset")
	assertCycles(t, e.CodeBytes.Load(), 0, "code bytes after reset")
	if e.MinCycles.Load() != ^uint64(0) {
		t.Error("reset must restore the min sentinel")
	}
	if e.Status() != "BASELINE" {
		t.Errorf("status after reset is %s, expected BASELINE", e.Status())
	}
}

// TestAscendCollation tests that reports iterate in language aware
// order rather than byte order.
func TestAscendCollation(t *testing.T) {
	tbl := NewTable()
	tbl.Entry("zeta")
	tbl.Entry("alpha")
	tbl.Entry("Beta")
	var names []string
	tbl.Ascend(func(e *Entry) bool {
		names = append(names, e.Name)
		return true
	})
	expected := []string{"alpha", "Beta", "zeta"}
	if len(names) != len(expected) {
		t.Fatalf("iterated %d entries, expected %d", len(names), len(expected))
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("position %d is %s, expected %s", i, names[i], expected[i])
		}
	}
}

// TestApplySettings tests pushing changed thresholds into a live table.
func TestApplySettings(t *testing.T) {
	tbl := NewTable()
	s := Settings
	s.CallsThreshold = 5
	s.CyclesThreshold = 50
	s.TrackSelfTime = true
	tbl.ApplySettings(s)
	if tbl.CallsThreshold.Load() != 5 || tbl.CyclesThreshold.Load() != 50 {
		t.Error("thresholds must follow the settings")
	}
	if !tbl.TrackSelf.Load() {
		t.Error("self time tracking must follow the settings")
	}
}
