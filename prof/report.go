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
	"fmt"
	"io"

	"github.com/docker/go-units"
)

// Report writes the profile table with the five fixed columns external
// tooling parses: operation name, call count, total cycles, average
// cycles, status. Column order must not change.
func (t *Table) Report(w io.Writer) {
	fmt.Fprintf(w, "%-24s %12s %16s %12s %10s\n", "operation", "calls", "total_cycles", "avg_cycles", "status")
	t.Ascend(func(e *Entry) bool {
		fmt.Fprintf(w, "%-24s %12d %16d %12d %10s\n",
			e.Name, e.Calls.Load(), e.TotalCycles.Load(), e.AvgCycles(), e.Status())
		return true
	})
}

// ReportDetail writes the extended statistics that are not part of the
// stable report contract: min/max/last/self cycles, generated code size
// and the measured baseline-vs-native speedup.
func (t *Table) ReportDetail(w io.Writer) {
	fmt.Fprintf(w, "%-24s %12s %12s %12s %12s %9s %9s\n",
		"operation", "min_cycles", "max_cycles", "last_cycles", "self_cycles", "code", "speedup")
	t.Ascend(func(e *Entry) bool {
		min := e.MinCycles.Load()
		if min == ^uint64(0) {
			min = 0
		}
		code := "-"
		if cb := e.CodeBytes.Load(); cb > 0 {
			code = units.BytesSize(float64(cb))
		}
		speedup := "-"
		if s := e.Speedup(); s > 0 {
			speedup = fmt.Sprintf("%.2fx", s)
		}
		fmt.Fprintf(w, "%-24s %12d %12d %12d %12d %9s %9s\n",
			e.Name, min, e.MaxCycles.Load(), e.LastCycles.Load(), e.SelfCycles(), code, speedup)
		return true
	})
}
