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
	"io"
	"os"
	"fmt"
	"time"
	"bytes"
	"context"
	"strconv"
	"strings"
	"encoding/json"
	"runtime/debug"
	"github.com/chzyer/readline"
	"github.com/ulikunitz/xz"
	"github.com/docker/go-units"
	"golang.org/x/text/message"
	"golang.org/x/text/language"
	"github.com/launix-de/hotpath/jit"
	"github.com/launix-de/hotpath/prof"
)

const newprompt  = "\033[32m>\033[0m "
const resultprompt = "\033[31m=\033[0m "

var ReplInstance *readline.Instance

// printer formats numbers with thousands separators for shell output
var printer = message.NewPrinter(language.English)

func Repl() {
	l, err := readline.NewEx(&readline.Config {
		Prompt: newprompt,
		HistoryFile: ".hotpath-history.tmp",
		InterruptPrompt: "^C",
		EOFPrompt: "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()
	ReplInstance = l

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		// anti-panic func
		func () {
			defer func () {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			result := runCommand(line)
			fmt.Print(resultprompt)
			fmt.Println(result)
		}()
	}
}

const helpText = `commands:
  help                          show this help
  report                        profile table (five stable columns)
  detail                        extended statistics (min/max/self/code/speedup)
  stats                         engine totals
  invoke <op> [args...]         call an operation through the dispatcher
  bench <op> [n]                drive n calls and compare baseline vs generated
  compile <op>|all              compile now instead of waiting for promotion
  dump <op>                     hex listing of the generated code
  threshold <calls> <cycles>    set both promotion thresholds
  settings [name [value]]       list, read or write a setting
  snapshot list                 list stored snapshots
  snapshot save [name]          store the current snapshot
  snapshot load <name>          print a stored snapshot
  snapshot remove <name>        delete a stored snapshot
  snapshot export <file.xz>     archive all snapshots into one xz file
  snapshot import <file.xz>     restore snapshots from an xz archive
  snapshot sql <dsn> [table]    replicate the current snapshot into a SQL table
  reset                         clear all statistics and re-arm promotion
  exit                          quit`

// runCommand executes one shell command and returns its output.
// Errors panic; the REPL and the -c loop wrap us in a recover.
func runCommand(line string) string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return ""
	}
	switch args[0] {
	case "help":
		return helpText
	case "report":
		var b bytes.Buffer
		engine.Table.Report(&b)
		return b.String()
	case "detail":
		var b bytes.Buffer
		engine.Table.ReportDetail(&b)
		return b.String()
	case "stats":
		return statsText()
	case "invoke":
		if len(args) < 2 {
			panic("usage: invoke <operation> [args...]")
		}
		op := engine.Get(args[1])
		if op == nil {
			panic("no such operation: " + args[1])
		}
		nums := make([]int, len(args)-2)
		for i, s := range args[2:] {
			x, err := strconv.Atoi(s)
			if err != nil {
				panic("invoke: not a number: " + s)
			}
			nums[i] = x
		}
		var v int32
		var err error
		if op.Kernel.Sig == jit.SigArray {
			// the remaining arguments form the array
			data := make([]int32, len(nums))
			for i, x := range nums {
				data[i] = int32(x)
			}
			v, err = engine.Invoke(args[1], data)
		} else {
			callargs := make([]any, len(nums))
			for i, x := range nums {
				callargs[i] = x
			}
			v, err = engine.Invoke(args[1], callargs...)
		}
		if err != nil {
			panic(err)
		}
		return printer.Sprintf("%d", v)
	case "bench":
		if len(args) < 2 {
			panic("usage: bench <operation> [iterations]")
		}
		n := 100000
		if len(args) > 2 {
			var err error
			n, err = strconv.Atoi(args[2])
			if err != nil {
				panic("bench: not a number: " + args[2])
			}
		}
		return benchCommand(args[1], n)
	case "compile":
		if len(args) < 2 || args[1] == "all" {
			if err := engine.CompileAll(); err != nil {
				panic(err)
			}
			return "ok"
		}
		op := engine.Get(args[1])
		if op == nil {
			panic("no such operation: " + args[1])
		}
		if err := engine.Compile(op); err != nil {
			panic(err)
		}
		return "ok"
	case "dump":
		if len(args) < 2 {
			panic("usage: dump <operation>")
		}
		op := engine.Get(args[1])
		if op == nil {
			panic("no such operation: " + args[1])
		}
		var b bytes.Buffer
		if err := op.Dump(&b); err != nil {
			panic(err)
		}
		return b.String()
	case "threshold":
		if len(args) != 3 {
			panic("usage: threshold <calls> <cycles>")
		}
		prof.ChangeSettings("CallsThreshold", args[1])
		prof.ChangeSettings("CyclesThreshold", args[2])
		return prof.ChangeSettings()
	case "settings":
		return prof.ChangeSettings(args[1:]...)
	case "snapshot":
		return snapshotCommand(args[1:])
	case "reset":
		engine.Reset()
		return "ok"
	default:
		panic("unknown command: " + args[0] + " (type help)")
	}
}

func statsText() string {
	s := sampler.Refresh()
	var b bytes.Buffer
	fmt.Fprintf(&b, "session       %s\n", s.Session)
	fmt.Fprintf(&b, "uptime        %.1fs\n", s.UptimeSec)
	printer.Fprintf(&b, "operations    %d\n", len(s.Operations))
	printer.Fprintf(&b, "exec regions  %d\n", s.ExecRegions)
	fmt.Fprintf(&b, "exec memory   %s\n", units.BytesSize(float64(s.ExecBytes)))
	fmt.Fprintf(&b, "code bytes    %s\n", units.BytesSize(float64(s.CodeBytes)))
	printer.Fprintf(&b, "overhead      %d cycles per measurement", engine.Table.Overhead())
	return b.String()
}

// benchCommand drives real calls through the dispatcher, so the numbers
// include promotion, compilation and the actually executed generated code.
func benchCommand(name string, n int) string {
	op := engine.Get(name)
	if op == nil {
		panic("no such operation: " + name)
	}
	data := make([]int32, 1024)
	for i := range data {
		data[i] = int32(i)
	}
	start := time.Now()
	var last int32
	for i := 0; i < n; i++ {
		switch op.Kernel.Sig {
		case jit.SigConst:
			last = op.CallConst()
		case jit.SigBinary:
			last = op.CallBinary(int32(i), 1)
		case jit.SigArray:
			last = op.CallArray(data)
		}
	}
	elapsed := time.Since(start)

	e := op.Entry()
	var b bytes.Buffer
	printer.Fprintf(&b, "%d calls in %v, last result %d\n", n, elapsed, last)
	if bc := e.BaselineCalls.Load(); bc > 0 {
		printer.Fprintf(&b, "baseline   %d calls, avg %d cycles\n", bc, e.BaselineCycles.Load()/bc)
	}
	if cc := e.CompiledCalls.Load(); cc > 0 {
		printer.Fprintf(&b, "generated  %d calls, avg %d cycles\n", cc, e.CompiledCycles.Load()/cc)
	}
	if s := e.Speedup(); s > 0 {
		fmt.Fprintf(&b, "speedup    %.2fx", s)
	} else if op.Compiled() {
		b.WriteString("speedup    - (enable ProfileCompiled to measure generated code)")
	} else {
		b.WriteString("speedup    - (not compiled yet, raise n or lower the thresholds)")
	}
	return b.String()
}

func snapshotCommand(args []string) string {
	if len(args) == 0 {
		panic("usage: snapshot list|save|load|remove|export|import|sql ...")
	}
	switch args[0] {
	case "list":
		names := store.ListSnapshots()
		if len(names) == 0 {
			return "(no snapshots)"
		}
		return strings.Join(names, "\n")
	case "save":
		name := time.Now().UTC().Format("20060102-150405")
		if len(args) > 1 {
			name = args[1]
		}
		s := sampler.Refresh()
		if err := prof.SaveSnapshot(store, name, s); err != nil {
			panic(err)
		}
		return "saved " + name
	case "load":
		if len(args) < 2 {
			panic("usage: snapshot load <name>")
		}
		s, err := prof.LoadSnapshot(store, args[1])
		if err != nil {
			panic(err)
		}
		var b bytes.Buffer
		if err := s.WriteTo(&b); err != nil {
			panic(err)
		}
		return b.String()
	case "remove":
		if len(args) < 2 {
			panic("usage: snapshot remove <name>")
		}
		store.RemoveSnapshot(args[1])
		return "ok"
	case "export":
		if len(args) < 2 {
			panic("usage: snapshot export <file.xz>")
		}
		return exportSnapshots(args[1])
	case "import":
		if len(args) < 2 {
			panic("usage: snapshot import <file.xz>")
		}
		return importSnapshots(args[1])
	case "sql":
		if len(args) < 2 {
			panic("usage: snapshot sql <dsn> [table]")
		}
		table := ""
		if len(args) > 2 {
			table = args[2]
		}
		s := sampler.Refresh()
		if err := prof.ExportSnapshotSQL(context.TODO(), args[1], table, s); err != nil {
			panic(err)
		}
		return "ok"
	default:
		panic("unknown snapshot subcommand: " + args[0])
	}
}

// exportSnapshots archives every stored snapshot into one xz compressed
// JSON array for offline analysis.
func exportSnapshots(filename string) string {
	names := store.ListSnapshots()
	all := make([]*prof.Snapshot, 0, len(names))
	for _, name := range names {
		s, err := prof.LoadSnapshot(store, name)
		if err != nil {
			panic(err)
		}
		all = append(all, s)
	}
	f, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	w, err := xz.NewWriter(f)
	if err != nil {
		panic(err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	if err := enc.Encode(all); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return fmt.Sprintf("exported %d snapshots to %s", len(all), filename)
}

func importSnapshots(filename string) string {
	f, err := os.Open(filename)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	r, err := xz.NewReader(f)
	if err != nil {
		panic(err)
	}
	var all []*prof.Snapshot
	if err := json.NewDecoder(r).Decode(&all); err != nil {
		panic(err)
	}
	for _, s := range all {
		if err := prof.SaveSnapshot(store, s.TakenAt.UTC().Format("20060102-150405"), s); err != nil {
			panic(err)
		}
	}
	return fmt.Sprintf("imported %d snapshots from %s", len(all), filename)
}
