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
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Snapshot is a point-in-time copy of the whole profile table plus the
// engine-level accounting. It is what the dashboard streams, what the
// stores persist and what the SQL sink exports.
type Snapshot struct {
	Session         string    `json:"session"`
	TakenAt         time.Time `json:"taken_at"`
	UptimeSec       float64   `json:"uptime_sec"`
	CallsThreshold  uint64    `json:"calls_threshold"`
	CyclesThreshold uint64    `json:"cycles_threshold"`
	ExecRegions     int       `json:"exec_regions"`
	ExecBytes       uint64    `json:"exec_bytes"`
	CodeBytes       uint64    `json:"code_bytes"`
	Operations      []OpStats `json:"operations"`
}

// OpStats is the serialized form of one Entry.
type OpStats struct {
	Name           string  `json:"name"`
	Calls          uint64  `json:"calls"`
	TotalCycles    uint64  `json:"total_cycles"`
	AvgCycles      uint64  `json:"avg_cycles"`
	MinCycles      uint64  `json:"min_cycles"`
	MaxCycles      uint64  `json:"max_cycles"`
	LastCycles     uint64  `json:"last_cycles"`
	SelfCycles     uint64  `json:"self_cycles"`
	CompiledCalls  uint64  `json:"compiled_calls"`
	CompiledCycles uint64  `json:"compiled_cycles"`
	CodeBytes      uint64  `json:"code_bytes"`
	Status         string  `json:"status"`
	Speedup        float64 `json:"speedup,omitempty"`
}

// Take builds a snapshot of the table. extra fills in the engine-level
// fields (session id, executable memory accounting) and may be nil.
func (t *Table) Take(extra func(*Snapshot)) *Snapshot {
	s := &Snapshot{
		TakenAt:         time.Now(),
		UptimeSec:       time.Since(processStart).Seconds(),
		CallsThreshold:  t.CallsThreshold.Load(),
		CyclesThreshold: t.CyclesThreshold.Load(),
	}
	t.Ascend(func(e *Entry) bool {
		min := e.MinCycles.Load()
		if min == ^uint64(0) {
			min = 0
		}
		s.Operations = append(s.Operations, OpStats{
			Name:           e.Name,
			Calls:          e.Calls.Load(),
			TotalCycles:    e.TotalCycles.Load(),
			AvgCycles:      e.AvgCycles(),
			MinCycles:      min,
			MaxCycles:      e.MaxCycles.Load(),
			LastCycles:     e.LastCycles.Load(),
			SelfCycles:     e.SelfCycles(),
			CompiledCalls:  e.CompiledCalls.Load(),
			CompiledCycles: e.CompiledCycles.Load(),
			CodeBytes:      e.CodeBytes.Load(),
			Status:         e.Status(),
			Speedup:        e.Speedup(),
		})
		return true
	})
	if extra != nil {
		extra(s)
	}
	return s
}

// WriteTo serializes the snapshot as indented JSON.
func (s *Snapshot) WriteTo(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(s)
}

// ReadSnapshotFrom parses a snapshot from JSON.
func ReadSnapshotFrom(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Sampler periodically takes snapshots, publishes the latest one through
// an atomic pointer (zero contention for readers) and keeps a bounded
// history ring for the dashboard charts.
type Sampler struct {
	table *Table
	extra func(*Snapshot)

	current unsafe.Pointer // *Snapshot

	mu      sync.Mutex
	ring    []*Snapshot
	ringPos int

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSampler prepares a sampler; Start launches the background loop.
func NewSampler(t *Table, extra func(*Snapshot)) *Sampler {
	s := &Sampler{
		table: t,
		extra: extra,
		stop:  make(chan struct{}),
	}
	s.publish(t.Take(extra))
	return s
}

// Current returns the latest published snapshot, never nil after NewSampler.
func (s *Sampler) Current() *Snapshot {
	p := atomic.LoadPointer(&s.current)
	if p == nil {
		return &Snapshot{}
	}
	return (*Snapshot)(p)
}

// History returns the retained snapshots, oldest first.
func (s *Sampler) History() []*Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Snapshot, 0, len(s.ring))
	n := len(s.ring)
	for i := 0; i < n; i++ {
		if snap := s.ring[(s.ringPos+i)%n]; snap != nil {
			out = append(out, snap)
		}
	}
	return out
}

// Refresh takes a snapshot immediately and publishes it.
func (s *Sampler) Refresh() *Snapshot {
	snap := s.table.Take(s.extra)
	s.publish(snap)
	return snap
}

func (s *Sampler) publish(snap *Snapshot) {
	atomic.StorePointer(&s.current, unsafe.Pointer(snap))
	history := Settings.SnapshotHistory
	if history <= 0 {
		return
	}
	s.mu.Lock()
	if len(s.ring) != history {
		// settings changed; restart the ring
		s.ring = make([]*Snapshot, history)
		s.ringPos = 0
	}
	s.ring[s.ringPos] = snap
	s.ringPos = (s.ringPos + 1) % history
	s.mu.Unlock()
}

// Start launches the background sampling loop. Interval changes via
// settings take effect on the next tick.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			interval := Settings.SnapshotInterval
			if interval <= 0 {
				interval = 10
			}
			select {
			case <-s.stop:
				return
			case <-time.After(time.Duration(interval) * time.Second):
				s.Refresh()
			}
		}
	}()
}

// Stop terminates the sampling loop and waits for it to finish.
func (s *Sampler) Stop() {
	close(s.stop)
	s.wg.Wait()
}
