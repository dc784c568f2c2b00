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
package main

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/launix-de/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/launix-de/hotpath/jit"
	"github.com/launix-de/hotpath/prof"
)

// TestKernelsResult tests that the kernels table lists every menu entry
// with its signature and code budget.
func TestKernelsResult(t *testing.T) {
	result := kernelsResult()
	if len(result.Fields) != 4 {
		t.Fatalf("kernels table has %d columns, expected 4", len(result.Fields))
	}
	if len(result.Rows) != len(jit.Kernels) {
		t.Fatalf("kernels table has %d rows, expected %d", len(result.Rows), len(jit.Kernels))
	}
	for i, k := range jit.Kernels {
		row := result.Rows[i]
		if !reflect.DeepEqual(row[0], sqltypes.NewVarChar(k.Name)) {
			t.Errorf("row %d: kernel column is %v, expected %s", i, row[0], k.Name)
		}
		if !reflect.DeepEqual(row[1], sqltypes.NewVarChar(k.Sig.String())) {
			t.Errorf("row %d: signature column is %v, expected %s", i, row[1], k.Sig.String())
		}
		if !reflect.DeepEqual(row[2], sqltypes.NewInt64(int64(k.MaxCode))) {
			t.Errorf("row %d: max_code column is %v, expected %d", i, row[2], k.MaxCode)
		}
	}
}

// TestSettingsResult tests that the settings table mirrors the settings
// listing as name/value pairs.
func TestSettingsResult(t *testing.T) {
	result := settingsResult()
	if len(result.Fields) != 2 {
		t.Fatalf("settings table has %d columns, expected 2", len(result.Fields))
	}
	if len(result.Rows) != 9 {
		t.Fatalf("settings table has %d rows, expected 9", len(result.Rows))
	}
	found := false
	want := sqltypes.NewVarChar(fmt.Sprint(prof.Settings.CallsThreshold))
	for _, row := range result.Rows {
		if reflect.DeepEqual(row[0], sqltypes.NewVarChar("CallsThreshold")) {
			found = true
			if !reflect.DeepEqual(row[1], want) {
				t.Errorf("CallsThreshold value is %v, expected %v", row[1], want)
			}
		}
	}
	if !found {
		t.Error("settings table has no CallsThreshold row")
	}
}

// TestProfileResult tests the profile table shape and that measured
// calls show up in the operation's row.
func TestProfileResult(t *testing.T) {
	engine = jit.NewEngine()
	defer engine.Close()
	op, err := engine.Register("add", "add", 0)
	if err != nil {
		t.Fatalf("register add: %v", err)
	}
	for i := 0; i < 5; i++ {
		if got := op.CallBinary(int32(i), 1); got != int32(i)+1 {
			t.Fatalf("add(%d, 1) returned %d", i, got)
		}
	}

	result := profileResult()
	if len(result.Fields) != 13 {
		t.Fatalf("profile table has %d columns, expected 13", len(result.Fields))
	}
	var row []sqltypes.Value
	for _, r := range result.Rows {
		if reflect.DeepEqual(r[0], sqltypes.NewVarChar("add")) {
			row = r
		}
	}
	if row == nil {
		t.Fatal("profile table has no row for add")
	}
	if !reflect.DeepEqual(row[1], sqltypes.NewInt64(5)) {
		t.Errorf("calls column is %v, expected 5", row[1])
	}
	if !reflect.DeepEqual(row[11], sqltypes.NewVarChar("BASELINE")) {
		t.Errorf("status column is %v, expected BASELINE", row[11])
	}
}
