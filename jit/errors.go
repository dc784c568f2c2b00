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

import "fmt"

// AllocationError reports a failed executable memory operation.
type AllocationError struct {
	Op   string // "mmap", "mprotect", "munmap"
	Size int
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("jit: %s of %d bytes failed: %v", e.Op, e.Size, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// BufferOverflow reports that emitted code did not fit the writer's
// buffer. The writer goes sticky-bad on the first overflowing emit, so
// no truncated code can ever reach executable memory.
type BufferOverflow struct {
	Capacity int
	Needed   int
}

func (e *BufferOverflow) Error() string {
	return fmt.Sprintf("jit: code buffer overflow: need %d bytes, have %d", e.Needed, e.Capacity)
}

// SignatureMismatch reports a call shape that does not fit the
// operation's registered kernel signature.
type SignatureMismatch struct {
	Op   string
	Want Signature
	Got  string
}

func (e *SignatureMismatch) Error() string {
	return fmt.Sprintf("jit: %s: signature mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}
