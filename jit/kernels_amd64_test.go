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
	"testing"
)

// compileKernel generates a kernel, copies it into a sealed region and
// registers the region for cleanup.
func compileKernel(t *testing.T, name string, imm int32) *Region {
	t.Helper()
	k := KernelByName(name)
	if k == nil {
		t.Fatalf("kernel %s missing from the menu", name)
	}
	code, err := k.Generate(imm)
	if err != nil {
		t.Fatalf("%s: generate failed: %v", name, err)
	}
	if len(code) > k.MaxCode {
		t.Fatalf("%s: %d code bytes exceed the declared bound of %d", name, len(code), k.MaxCode)
	}
	r, err := AllocRegion(len(code))
	if err != nil {
		t.Fatalf("%s: alloc failed: %v", name, err)
	}
	copy(r.Buf(), code)
	if err := r.Seal(); err != nil {
		t.Fatalf("%s: seal failed: %v", name, err)
	}
	t.Cleanup(func() { r.Release() })
	return r
}

// TestGenerateConst tests the emitted bytes of the constant kernel
// including a negative immediate.
func TestGenerateConst(t *testing.T) {
	k := KernelByName("const")
	code, err := k.Generate(42)
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, code, []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}, "const 42")
	code, err = k.Generate(-1)
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, code, []byte{0xB8, 0xFF, 0xFF, 0xFF, 0xFF, 0xC3}, "const -1")
}

// TestGenerateAdd tests the emitted bytes of the add kernel.
func TestGenerateAdd(t *testing.T) {
	code, err := KernelByName("add").Generate(0)
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, code, []byte{0x01, 0xD8, 0xC3}, "add")
}

// TestGenerateArraySum tests the emitted bytes of the naive array sum
// loop with both jump fixups resolved.
func TestGenerateArraySum(t *testing.T) {
	code, err := KernelByName("array_sum").Generate(0)
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, code, []byte{
		0x48, 0x89, 0xC6, // mov rsi, rax
		0x31, 0xC0, // xor eax, eax
		0x31, 0xC9, // xor ecx, ecx
		0x85, 0xDB, // test ebx, ebx
		0x0F, 0x8E, 0x0D, 0x00, 0x00, 0x00, // jle done
		0x03, 0x04, 0x8E, // add eax, [rsi+rcx*4]
		0xFF, 0xC1, // inc ecx
		0x39, 0xD9, // cmp ecx, ebx
		0x0F, 0x8C, 0xF3, 0xFF, 0xFF, 0xFF, // jl loop
		0xC3, // done: ret
	}, "array_sum")
}

// TestGenerateArraySum4 tests the emitted bytes of the unrolled array
// sum: block loop, scalar tail and all five jump fixups.
func TestGenerateArraySum4(t *testing.T) {
	code, err := KernelByName("array_sum4").Generate(0)
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, code, []byte{
		0x48, 0x89, 0xC6, // mov rsi, rax
		0x31, 0xC0, // xor eax, eax
		0x31, 0xC9, // xor ecx, ecx
		0x85, 0xDB, // test ebx, ebx
		0x0F, 0x8E, 0x3D, 0x00, 0x00, 0x00, // jle done
		0x89, 0xDA, // mov edx, ebx
		0xC1, 0xEA, 0x02, // shr edx, 2
		0x0F, 0x84, 0x1A, 0x00, 0x00, 0x00, // je tail
		0x03, 0x06, // blk: add eax, [rsi]
		0x03, 0x46, 0x04, // add eax, [rsi+4]
		0x03, 0x46, 0x08, // add eax, [rsi+8]
		0x03, 0x46, 0x0C, // add eax, [rsi+12]
		0x48, 0x83, 0xC6, 0x10, // add rsi, 16
		0x83, 0xC1, 0x04, // add ecx, 4
		0xFF, 0xCA, // dec edx
		0x0F, 0x85, 0xE6, 0xFF, 0xFF, 0xFF, // jne blk
		0x39, 0xD9, // tail: cmp ecx, ebx
		0x0F, 0x8D, 0x10, 0x00, 0x00, 0x00, // jge done
		0x03, 0x06, // rem: add eax, [rsi]
		0x48, 0x83, 0xC6, 0x04, // add rsi, 4
		0xFF, 0xC1, // inc ecx
		0x39, 0xD9, // cmp ecx, ebx
		0x0F, 0x8C, 0xF0, 0xFF, 0xFF, 0xFF, // jl rem
		0xC3, // done: ret
	}, "array_sum4")
}

// TestExecuteConst tests the sealed constant kernel end to end.
func TestExecuteConst(t *testing.T) {
	fn := compileKernel(t, "const", 1234).ConstFunc()
	if got := fn(); got != 1234 {
		t.Errorf("const kernel returned %d, expected 1234", got)
	}
	fn = compileKernel(t, "const", -7).ConstFunc()
	if got := fn(); got != -7 {
		t.Errorf("const kernel returned %d, expected -7", got)
	}
}

// TestExecuteAdd tests the sealed add kernel against the Go baseline.
func TestExecuteAdd(t *testing.T) {
	fn := compileKernel(t, "add", 0).BinaryFunc()
	cases := []struct{ a, b int32 }{
		{0, 0}, {10, 32}, {-5, 3}, {2147483647, 1}, {-2147483648, -1},
	}
	for _, c := range cases {
		if got, want := fn(c.a, c.b), addBaseline(c.a, c.b); got != want {
			t.Errorf("add(%d, %d) = %d, expected %d", c.a, c.b, got, want)
		}
	}
}

// TestExecuteArraySum tests both sealed array kernels against the Go
// baselines across empty, partial block and multi block sizes.
func TestExecuteArraySum(t *testing.T) {
	for _, name := range []string{"array_sum", "array_sum4"} {
		fn := compileKernel(t, name, 0).ArrayFunc()
		for _, n := range []int{0, 1, 2, 3, 4, 5, 7, 8, 15, 16, 17, 64} {
			a := sampleArray(n)
			var p *int32
			if n > 0 {
				p = &a[0]
			}
			if got := fn(p, int32(n)); got != gaussSum(n) {
				t.Errorf("%s(n=%d) = %d, expected %d", name, n, got, gaussSum(n))
			}
		}
		// n <= 0 returns before the first load, nil is never touched
		if got := fn(nil, 0); got != 0 {
			t.Errorf("%s(nil, 0) = %d, expected 0", name, got)
		}
		if got := fn(nil, -3); got != 0 {
			t.Errorf("%s(nil, -3) = %d, expected 0", name, got)
		}
	}
}

// TestExecuteArraySumValues tests the array kernels on value patterns
// with cancellation and wraparound.
func TestExecuteArraySumValues(t *testing.T) {
	data := []int32{2147483647, 1, -100, 100, -2147483648, 7}
	var expected int32
	for _, v := range data {
		expected += v
	}
	for _, name := range []string{"array_sum", "array_sum4"} {
		fn := compileKernel(t, name, 0).ArrayFunc()
		if got := fn(&data[0], int32(len(data))); got != expected {
			t.Errorf("%s over mixed values = %d, expected %d", name, got, expected)
		}
	}
}

// TestCycleCounter tests the generated timestamp counter for
// monotonicity and a clean region lifecycle.
func TestCycleCounter(t *testing.T) {
	counter, region, err := newCycleCounter()
	if err != nil {
		t.Fatal(err)
	}
	defer region.Release()
	if !region.Executable() {
		t.Error("counter region must come back sealed")
	}
	last := counter()
	for i := 0; i < 1000; i++ {
		now := counter()
		if now < last {
			t.Fatalf("cycle counter went backwards: %d after %d", now, last)
		}
		last = now
	}
}
