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

// kernelaudit reads the kernel menu, builds SSA for the Go baseline
// functions and checks that each one stays inside the shape the native
// emitters can express: leaf code, no heap allocation, simple loops.
//
// Usage:
//   go run ./tools/kernelaudit/ ./jit          # audit all baselines
//   go run ./tools/kernelaudit/ -dump=add      # hex dump of the emitted code
//   go run ./tools/kernelaudit/ -v ./jit       # audit with SSA dumps
package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/launix-de/hotpath/jit"
)

var dumpOp string
var dumpImm int64 = 42
var verbose bool

func main() {
	var dirs []string
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-dump=") {
			dumpOp = arg[len("-dump="):]
		} else if strings.HasPrefix(arg, "-imm=") {
			var err error
			dumpImm, err = strconv.ParseInt(arg[len("-imm="):], 10, 32)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad -imm value: %v\n", err)
				os.Exit(1)
			}
		} else if arg == "-v" || arg == "--verbose" {
			verbose = true
		} else {
			dirs = append(dirs, arg)
		}
	}

	if dumpOp != "" {
		k := jit.KernelByName(dumpOp)
		if k == nil {
			fmt.Fprintf(os.Stderr, "unknown kernel %q\n", dumpOp)
			os.Exit(1)
		}
		if err := jit.DumpKernel(os.Stdout, k, int32(dumpImm)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	pkgDir := "./jit"
	if len(dirs) > 0 {
		pkgDir = dirs[0]
	}

	// Load package with full type info for SSA
	cfg := &packages.Config{
		Mode: packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps | packages.NeedImports | packages.NeedName,
	}
	pkgs, err := packages.Load(cfg, pkgDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load package: %v\n", err)
		os.Exit(1)
	}
	if len(pkgs) == 0 {
		fmt.Fprintf(os.Stderr, "no packages found\n")
		os.Exit(1)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		for _, e := range pkg.Errors {
			fmt.Fprintf(os.Stderr, "  %v\n", e)
		}
		os.Exit(1)
	}
	fset := pkg.Fset

	// Build SSA
	prog, _ := ssautil.AllPackages(pkgs, 0)
	prog.Build()

	// Index all SSA functions by source position
	ssaFuncs := map[token.Pos]*ssa.Function{}
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Pos().IsValid() {
			ssaFuncs[fn.Pos()] = fn
		}
	}

	// Collect the kernel menu entries from the AST
	var entries []menuEntry
	for _, astFile := range pkg.Syntax {
		fname := fset.Position(astFile.Pos()).Filename
		entries = append(entries, collectMenu(astFile, fname)...)
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "no Kernels menu found in %s\n", pkgDir)
		os.Exit(1)
	}

	bad := 0
	for _, entry := range entries {
		ctor := ssaFuncs[entry.baseline.Pos()]
		if ctor == nil {
			fmt.Fprintf(os.Stderr, "  %s: %s: SSA function not found\n", entry.path, entry.name)
			bad++
			continue
		}
		// the constructor only wraps the per-call function; audit what
		// it references
		for _, fn := range referencedFuncs(ctor) {
			r := auditFn(fn)
			if len(r.reasons) == 0 {
				fmt.Printf("  %s: %s (%s) OK: blocks=%d loops=%d\n",
					entry.path, entry.name, fn.Name(), r.blocks, r.loops)
			} else {
				fmt.Printf("  %s: %s (%s) NOT LEAF: %s\n",
					entry.path, entry.name, fn.Name(), strings.Join(r.reasons, "; "))
				bad++
			}
			if verbose {
				dumpSSA(fn)
			}
		}
	}
	if bad > 0 {
		os.Exit(1)
	}
}

// --- AST menu collection ---

type menuEntry struct {
	name     string
	path     string
	baseline *ast.FuncLit
}

// collectMenu finds the Kernels slice literal and extracts each entry's
// name and baseline constructor literal.
func collectMenu(f *ast.File, path string) []menuEntry {
	var entries []menuEntry
	ast.Inspect(f, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || len(spec.Names) == 0 || spec.Names[0].Name != "Kernels" || len(spec.Values) == 0 {
			return true
		}
		menu, ok := spec.Values[0].(*ast.CompositeLit)
		if !ok {
			return true
		}
		for _, elt := range menu.Elts {
			kernel, ok := elt.(*ast.CompositeLit)
			if !ok {
				continue
			}
			var entry menuEntry
			entry.path = path
			for _, kv := range kernel.Elts {
				pair, ok := kv.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				key, ok := pair.Key.(*ast.Ident)
				if !ok {
					continue
				}
				switch key.Name {
				case "Name":
					if lit, ok := pair.Value.(*ast.BasicLit); ok && lit.Kind == token.STRING {
						entry.name = strings.Trim(lit.Value, "\"")
					}
				case "baseline":
					if fl, ok := pair.Value.(*ast.FuncLit); ok {
						entry.baseline = fl
					}
				}
			}
			if entry.name != "" && entry.baseline != nil {
				entries = append(entries, entry)
			}
		}
		return false
	})
	return entries
}

// referencedFuncs returns every function a constructor mentions, either
// as a closure it makes or as a named function it stores.
func referencedFuncs(ctor *ssa.Function) []*ssa.Function {
	var fns []*ssa.Function
	seen := map[*ssa.Function]bool{}
	for _, block := range ctor.Blocks {
		for _, instr := range block.Instrs {
			for _, rand := range instr.Operands(nil) {
				if rand == nil || *rand == nil {
					continue
				}
				if fn, ok := (*rand).(*ssa.Function); ok && fn != ctor && !seen[fn] {
					seen[fn] = true
					fns = append(fns, fn)
				}
			}
		}
	}
	return fns
}

// --- leaf audit ---

type auditReport struct {
	blocks  int
	loops   int
	reasons []string
}

// auditFn checks one per-call function against what the emitters can
// express: no calls except builtins, no heap allocation, no defer or
// go or recover, and every loop a simple single-latch loop.
func auditFn(fn *ssa.Function) auditReport {
	var r auditReport
	r.blocks = len(fn.Blocks)

	if fn.Recover != nil {
		r.reasons = append(r.reasons, "has recover block")
	}
	if len(fn.AnonFuncs) > 0 {
		r.reasons = append(r.reasons, "nests closures")
	}

	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			switch v := instr.(type) {
			case *ssa.Call:
				if _, ok := v.Call.Value.(*ssa.Builtin); ok {
					continue // len, cap, unsafe.Slice compile to inline code
				}
				if callee := v.Call.StaticCallee(); callee != nil {
					r.reasons = append(r.reasons, "calls "+callee.Name())
				} else {
					r.reasons = append(r.reasons, "dynamic call: "+v.String())
				}
			case *ssa.Defer:
				r.reasons = append(r.reasons, "defers")
			case *ssa.Go:
				r.reasons = append(r.reasons, "starts goroutine")
			case *ssa.Panic:
				r.reasons = append(r.reasons, "panics")
			case *ssa.Alloc:
				if v.Heap {
					r.reasons = append(r.reasons, "heap allocates "+v.Name())
				}
			case *ssa.MakeSlice, *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeInterface, *ssa.MakeClosure:
				r.reasons = append(r.reasons, "allocates: "+instrDesc(instr))
			case *ssa.Select:
				r.reasons = append(r.reasons, "selects on channels")
			case *ssa.Range, *ssa.Next:
				r.reasons = append(r.reasons, "ranges over map or string")
			}
		}
	}

	// every loop header must have exactly one latch, otherwise the
	// control flow is not a simple counted loop
	latches := map[*ssa.BasicBlock][]*ssa.BasicBlock{}
	for _, block := range fn.Blocks {
		for _, succ := range block.Succs {
			if succ.Index <= block.Index {
				latches[succ] = append(latches[succ], block)
			}
		}
	}
	r.loops = len(latches)
	for header, ls := range latches {
		if len(ls) > 1 {
			r.reasons = append(r.reasons, fmt.Sprintf("loop at BB%d has %d latches", header.Index, len(ls)))
		}
	}

	return r
}

// --- SSA dump ---

func dumpSSA(fn *ssa.Function) {
	fmt.Printf("\n  SSA for %s (%d blocks):\n", fn.Name(), len(fn.Blocks))
	for _, block := range fn.Blocks {
		fmt.Printf("    BB%d:", block.Index)
		if len(block.Preds) > 0 {
			preds := make([]string, len(block.Preds))
			for i, p := range block.Preds {
				preds[i] = fmt.Sprintf("BB%d", p.Index)
			}
			fmt.Printf(" <- %s", strings.Join(preds, ", "))
		}
		fmt.Println()
		for _, instr := range block.Instrs {
			fmt.Printf("      %-60s %T\n", instr, instr)
		}
		succs := block.Succs
		if len(succs) > 0 {
			ss := make([]string, len(succs))
			for i, s := range succs {
				ss[i] = fmt.Sprintf("BB%d", s.Index)
			}
			fmt.Printf("      -> %s\n", strings.Join(ss, ", "))
		}
		fmt.Println()
	}
}

func instrDesc(instr ssa.Instruction) string {
	typeName := fmt.Sprintf("%T", instr)
	typeName = strings.TrimPrefix(typeName, "*ssa.")
	return fmt.Sprintf("%s: %s", typeName, instr)
}
