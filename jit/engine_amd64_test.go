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

import (
	"bytes"
	"strings"
	"testing"

	"github.com/launix-de/hotpath/prof"
)

// armPromotion lowers the promotion thresholds so a handful of calls
// triggers compilation.
func armPromotion(e *Engine, calls uint64) {
	e.Table.CallsThreshold.Store(calls)
	e.Table.CyclesThreshold.Store(0)
}

// TestPromoteAndCompile tests the full lifecycle: baseline calls feed
// the profiler, the promoting call compiles synchronously and later
// calls run generated code with unchanged results.
func TestPromoteAndCompile(t *testing.T) {
	e := testEngine(t)
	armPromotion(e, 3)
	op := mustRegister(t, e, "sum", "add", 0)

	for i := 0; i < 3; i++ {
		if got := op.CallBinary(int32(i), 10); got != int32(i)+10 {
			t.Fatalf("call %d returned %d, expected %d", i, got, int32(i)+10)
		}
	}
	if !op.Compiled() {
		t.Fatal("operation must be compiled after reaching the thresholds")
	}
	if status := op.Entry().Status(); status != "COMPILED" {
		t.Errorf("status is %s, expected COMPILED", status)
	}
	r := op.Region()
	if r == nil || !r.Executable() {
		t.Fatal("compiled operation must carry a sealed region")
	}
	if r.CodeLen() != 3 {
		t.Errorf("add kernel compiled into %d bytes, expected 3", r.CodeLen())
	}
	if op.Entry().CodeBytes.Load() != 3 {
		t.Errorf("profile records %d code bytes, expected 3", op.Entry().CodeBytes.Load())
	}
	if op.Entry().BaselineCalls.Load() != 3 {
		t.Errorf("baseline phase froze at %d calls, expected 3", op.Entry().BaselineCalls.Load())
	}

	for i := 0; i < 5; i++ {
		if got := op.CallBinary(100, int32(i)); got != 100+int32(i) {
			t.Fatalf("compiled call returned %d, expected %d", got, 100+int32(i))
		}
	}
	if op.Entry().Calls.Load() != 8 {
		t.Errorf("profile counted %d calls, expected 8", op.Entry().Calls.Load())
	}
	if op.Entry().CompiledCalls.Load() != 5 {
		t.Errorf("compiled phase counted %d calls, expected 5", op.Entry().CompiledCalls.Load())
	}
}

// TestCompileIdempotent tests that compiling twice keeps the first
// region and that explicit compilation works without any profile heat.
func TestCompileIdempotent(t *testing.T) {
	e := testEngine(t)
	op := mustRegister(t, e, "walk", "array_sum4", 0)
	if err := e.Compile(op); err != nil {
		t.Fatal(err)
	}
	first := op.Region()
	if err := e.Compile(op); err != nil {
		t.Fatal(err)
	}
	if op.Region() != first {
		t.Error("recompiling must keep the existing region")
	}
	data := sampleArray(13)
	if got := op.CallArray(data); got != gaussSum(13) {
		t.Errorf("compiled array_sum4 returned %d, expected %d", got, gaussSum(13))
	}
}

// TestCompileAllAndInvoke tests bulk compilation across all signatures
// and the by-name call path on generated code.
func TestCompileAllAndInvoke(t *testing.T) {
	e := testEngine(t)
	mustRegister(t, e, "answer", "const", 42)
	mustRegister(t, e, "sum", "add", 0)
	mustRegister(t, e, "walk", "array_sum", 0)
	mustRegister(t, e, "walk4", "array_sum4", 0)
	if err := e.CompileAll(); err != nil {
		t.Fatal(err)
	}
	for _, op := range e.Operations() {
		if !op.Compiled() {
			t.Errorf("%s is not compiled after CompileAll", op.Name)
		}
	}
	if got, err := e.Invoke("answer"); err != nil || got != 42 {
		t.Errorf("Invoke(answer) = %d, %v, expected 42", got, err)
	}
	if got, err := e.Invoke("sum", 2147483647, 1); err != nil || got != -2147483648 {
		t.Errorf("Invoke(sum, max, 1) = %d, %v, expected wraparound", got, err)
	}
	if got, err := e.Invoke("walk", sampleArray(7)); err != nil || got != gaussSum(7) {
		t.Errorf("Invoke(walk) = %d, %v, expected %d", got, err, gaussSum(7))
	}
	if got, err := e.Invoke("walk4", sampleArray(17)); err != nil || got != gaussSum(17) {
		t.Errorf("Invoke(walk4) = %d, %v, expected %d", got, err, gaussSum(17))
	}
}

// TestResetRearms tests that a reset falls back to baselines, clears
// the statistics and leaves the operation compilable again.
func TestResetRearms(t *testing.T) {
	e := testEngine(t)
	armPromotion(e, 2)
	op := mustRegister(t, e, "sum", "add", 0)
	op.CallBinary(1, 2)
	op.CallBinary(3, 4)
	if !op.Compiled() {
		t.Fatal("operation must be compiled before the reset")
	}

	var before prof.Snapshot
	e.SnapshotExtra(&before)

	e.Reset()
	if op.Compiled() {
		t.Error("reset must fall back to the Go baseline")
	}
	if op.Region() != nil {
		t.Error("reset must detach the generated region")
	}
	if op.Entry().Calls.Load() != 0 {
		t.Error("reset must clear the call statistics")
	}
	if status := op.Entry().Status(); status != "BASELINE" {
		t.Errorf("status is %s, expected BASELINE", status)
	}

	var after prof.Snapshot
	e.SnapshotExtra(&after)
	if after.ExecRegions != before.ExecRegions {
		t.Errorf("retired regions must stay mapped: %d regions, expected %d",
			after.ExecRegions, before.ExecRegions)
	}
	if after.CodeBytes != before.CodeBytes-3 {
		t.Errorf("code bytes after reset are %d, expected %d", after.CodeBytes, before.CodeBytes-3)
	}

	// heat it up again
	if got := op.CallBinary(20, 22); got != 42 {
		t.Errorf("baseline call after reset returned %d, expected 42", got)
	}
	op.CallBinary(1, 1)
	if !op.Compiled() {
		t.Error("operation must be compilable again after the reset")
	}
}

// TestCloseReleasesRegions tests that closing the engine releases all
// executable memory including the generated cycle counter.
func TestCloseReleasesRegions(t *testing.T) {
	e := NewEngine()
	armPromotion(e, 1)
	op := mustRegister(t, e, "answer", "const", 7)
	op.CallConst()
	if !op.Compiled() {
		t.Fatal("operation must be compiled before the close")
	}
	e.Close()

	var s prof.Snapshot
	e.SnapshotExtra(&s)
	if s.ExecRegions != 0 || s.ExecBytes != 0 || s.CodeBytes != 0 {
		t.Errorf("closed engine still accounts regions=%d bytes=%d code=%d",
			s.ExecRegions, s.ExecBytes, s.CodeBytes)
	}
	if got := op.CallConst(); got != 7 {
		t.Errorf("baseline call after close returned %d, expected 7", got)
	}
	// the fallback counter must still serve measurements
	a := e.Table.Counter()
	b := e.Table.Counter()
	if b < a {
		t.Error("fallback counter went backwards")
	}
}

// TestSnapshotExtra tests the executable memory accounting deltas
// around a compilation.
func TestSnapshotExtra(t *testing.T) {
	e := testEngine(t)
	var before prof.Snapshot
	e.SnapshotExtra(&before)
	if before.Session == "" {
		t.Error("snapshot must carry the session id")
	}

	op := mustRegister(t, e, "answer", "const", 42)
	if err := e.Compile(op); err != nil {
		t.Fatal(err)
	}
	var after prof.Snapshot
	e.SnapshotExtra(&after)
	if after.ExecRegions != before.ExecRegions+1 {
		t.Errorf("regions went %d to %d, expected one more", before.ExecRegions, after.ExecRegions)
	}
	if after.CodeBytes != before.CodeBytes+6 {
		t.Errorf("code bytes went %d to %d, expected six more", before.CodeBytes, after.CodeBytes)
	}
	if after.ExecBytes <= before.ExecBytes {
		t.Error("executable bytes must grow with a new region")
	}
}

// TestDumpListing tests the hex listings for baseline previews and
// live regions.
func TestDumpListing(t *testing.T) {
	e := testEngine(t)
	op := mustRegister(t, e, "answer", "const", 42)

	var buf bytes.Buffer
	if err := op.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "preview") {
		t.Error("baseline dump must be marked as a preview")
	}
	if !strings.Contains(buf.String(), "b8 2a 00 00 00 c3") {
		t.Errorf("dump misses the code bytes:\n%s", buf.String())
	}

	if err := e.Compile(op); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := op.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "live") {
		t.Error("compiled dump must be marked as live")
	}

	buf.Reset()
	if err := DumpKernel(&buf, KernelByName("add"), 0); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "01 d8 c3") {
		t.Errorf("kernel dump misses the code bytes:\n%s", buf.String())
	}
}
