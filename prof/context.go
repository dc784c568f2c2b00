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
	"sync/atomic"

	"github.com/jtolds/gls"
)

// Nested measurement support. When one measured operation calls another
// measured operation, the inner elapsed time is charged to the enclosing
// frame so self cycles can be told apart from child cycles. Frames live
// in goroutine-local storage; gls.Go would carry them across spawns.

type measureFrame struct {
	child atomic.Uint64
}

type frameKeyT struct{}

var frameKey frameKeyT

var frames = gls.NewContextManager()

func (t *Table) measureFramed(e *Entry, thunk func()) {
	f := new(measureFrame)
	start := t.Counter()
	frames.SetValues(gls.Values{frameKey: f}, thunk)
	elapsed := t.Counter() - start
	if elapsed > t.overhead {
		elapsed -= t.overhead
	} else {
		elapsed = 0
	}
	// charge our whole time to the enclosing measured call, if any
	if p, ok := frames.GetValue(frameKey); ok {
		p.(*measureFrame).child.Add(elapsed)
	}
	e.ChildCycles.Add(f.child.Load())
	t.Record(e, elapsed)
}
