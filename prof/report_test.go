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
	"bytes"
	"io"
	"strings"
	"testing"
)

// reportLines renders a report and splits it into its lines.
func reportLines(t *testing.T, render func(io.Writer)) []string {
	t.Helper()
	var buf bytes.Buffer
	render(&buf)
	out := strings.TrimRight(buf.String(), "\n")
	return strings.Split(out, "\n")
}

// TestReportFormat tests the fixed five column layout of the profile
// report.
func TestReportFormat(t *testing.T) {
	tbl := NewTable()
	scan := tbl.Entry("scan")
	tbl.Record(scan, 90)
	tbl.Record(scan, 110)
	tbl.Entry("idle")

	lines := reportLines(t, tbl.Report)
	if len(lines) != 3 {
		t.Fatalf("report has %d lines, expected header plus two rows", len(lines))
	}
	header := strings.Fields(lines[0])
	expected := []string{"operation", "calls", "total_cycles", "avg_cycles", "status"}
	if len(header) != len(expected) {
		t.Fatalf("header has %d columns, expected %d", len(header), len(expected))
	}
	for i := range expected {
		if header[i] != expected[i] {
			t.Errorf("header column %d is %s, expected %s", i, header[i], expected[i])
		}
	}

	idle := strings.Fields(lines[1])
	if idle[0] != "idle" || idle[1] != "0" || idle[4] != "BASELINE" {
		t.Errorf("idle row is %v", idle)
	}
	row := strings.Fields(lines[2])
	if row[0] != "scan" || row[1] != "2" || row[2] != "200" || row[3] != "100" || row[4] != "BASELINE" {
		t.Errorf("scan row is %v", row)
	}
}

// TestReportStatusColumn tests that promotion and compilation show up
// in the status column.
func TestReportStatusColumn(t *testing.T) {
	tbl := NewTable()
	tbl.CallsThreshold.Store(1)
	tbl.CyclesThreshold.Store(1)
	e := tbl.Entry("scan")
	tbl.Record(e, 5)

	lines := reportLines(t, tbl.Report)
	if !strings.Contains(lines[1], "CANDIDATE") {
		t.Errorf("promoted row misses CANDIDATE: %s", lines[1])
	}
	tbl.MarkCompiled(e, 6)
	lines = reportLines(t, tbl.Report)
	if !strings.Contains(lines[1], "COMPILED") {
		t.Errorf("compiled row misses COMPILED: %s", lines[1])
	}
}

// TestReportDetailFormat tests the extended report including the dash
// placeholders and the min sentinel.
func TestReportDetailFormat(t *testing.T) {
	tbl := NewTable()
	tbl.Entry("idle")
	scan := tbl.Entry("scan")
	tbl.Record(scan, 100)
	tbl.MarkCompiled(scan, 2048)
	tbl.Record(scan, 10)

	lines := reportLines(t, tbl.ReportDetail)
	if len(lines) != 3 {
		t.Fatalf("detail report has %d lines, expected 3", len(lines))
	}
	header := strings.Fields(lines[0])
	expected := []string{"operation", "min_cycles", "max_cycles", "last_cycles", "self_cycles", "code", "speedup"}
	for i := range expected {
		if header[i] != expected[i] {
			t.Errorf("header column %d is %s, expected %s", i, header[i], expected[i])
		}
	}

	idle := strings.Fields(lines[1])
	if idle[1] != "0" {
		t.Errorf("unmeasured min must print 0, row is %v", idle)
	}
	if idle[5] != "-" || idle[6] != "-" {
		t.Errorf("unmeasured row must print dashes, row is %v", idle)
	}

	scanRow := strings.Fields(lines[2])
	if scanRow[1] != "10" || scanRow[2] != "100" || scanRow[3] != "10" {
		t.Errorf("scan cycle columns are %v", scanRow)
	}
	if scanRow[5] != "2KiB" {
		t.Errorf("code size is %s, expected 2KiB", scanRow[5])
	}
	if scanRow[6] != "10.00x" {
		t.Errorf("speedup is %s, expected 10.00x", scanRow[6])
	}
}
