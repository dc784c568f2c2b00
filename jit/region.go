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

import "syscall"
import "unsafe"

// Region is one mmap'd block of code memory with a W^X lifecycle:
// writable after AllocRegion, executable after Seal, gone after
// Release. The mapping is never writable and executable at once.
type Region struct {
	mem  []byte // page-rounded anonymous mapping
	code int    // bytes of emitted code inside the mapping
	exec bool
}

// AllocRegion maps a read-write region large enough for size code bytes.
func AllocRegion(size int) (*Region, error) {
	if size <= 0 {
		return nil, &AllocationError{Op: "mmap", Size: size, Err: syscall.EINVAL}
	}
	page := syscall.Getpagesize()
	n := (size + page - 1) & ^(page - 1)
	b, err := syscall.Mmap(-1, 0, n, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, &AllocationError{Op: "mmap", Size: n, Err: err}
	}
	return &Region{mem: b, code: size}, nil
}

// Buf returns the writable code window, nil once sealed or released.
func (r *Region) Buf() []byte {
	if r.exec || r.mem == nil {
		return nil
	}
	return r.mem[:r.code]
}

// Seal flips the mapping from read-write to read-execute. One-way.
func (r *Region) Seal() error {
	if r.mem == nil {
		return &AllocationError{Op: "mprotect", Size: 0, Err: syscall.EINVAL}
	}
	if r.exec {
		return nil
	}
	if err := syscall.Mprotect(r.mem, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		return &AllocationError{Op: "mprotect", Size: len(r.mem), Err: err}
	}
	r.exec = true
	return nil
}

// Executable reports whether the region has been sealed.
func (r *Region) Executable() bool {
	return r.exec
}

// Code returns the emitted bytes, readable in both states.
func (r *Region) Code() []byte {
	if r.mem == nil {
		return nil
	}
	return r.mem[:r.code]
}

// Size returns the page-rounded size of the mapping.
func (r *Region) Size() int {
	return len(r.mem)
}

// CodeLen returns the number of code bytes inside the mapping.
func (r *Region) CodeLen() int {
	return r.code
}

// Release unmaps the region. The caller must guarantee that no
// function value produced from this region can still be called.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	r.exec = false
	if err := syscall.Munmap(mem); err != nil {
		return &AllocationError{Op: "munmap", Size: len(mem), Err: err}
	}
	return nil
}

// entry builds the funcval indirection for casting the region into a
// Go function value: a pointer to a struct whose first word is the
// code address, matching the runtime's closure layout.
func (r *Region) entry() unsafe.Pointer {
	if !r.exec {
		panic("jit: region not sealed")
	}
	return unsafe.Pointer(&struct{ *byte }{&r.mem[0]})
}

// ConstFunc casts the region into a constant-return function.
func (r *Region) ConstFunc() func() int32 {
	fn2 := r.entry()
	return *(*func() int32)(unsafe.Pointer(&fn2))
}

// BinaryFunc casts the region into a two-operand function.
func (r *Region) BinaryFunc() func(int32, int32) int32 {
	fn2 := r.entry()
	return *(*func(int32, int32) int32)(unsafe.Pointer(&fn2))
}

// ArrayFunc casts the region into an array-walking function.
func (r *Region) ArrayFunc() func(*int32, int32) int32 {
	fn2 := r.entry()
	return *(*func(*int32, int32) int32)(unsafe.Pointer(&fn2))
}

// CounterFunc casts the region into a cycle counter reader.
func (r *Region) CounterFunc() func() uint64 {
	fn2 := r.entry()
	return *(*func() uint64)(unsafe.Pointer(&fn2))
}
