// This file is part of FATMount
// Copyright (c) 2025 The FATMount Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package blockdev

import (
	"unsafe"

	"github.com/openembed/fatmount/pkg/consts"
)

// Aligned reports whether the base address of buf sits on the platform DMA
// boundary. Empty buffers are never DMA candidates.
func Aligned(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&buf[0]))%consts.DMAAlignment == 0
}

// AlignedBuffer allocates a buffer of n bytes whose base address sits on the
// platform DMA boundary. Used for the per-mount scratch DMA buffer and for
// whole-file map buffers.
func AlignedBuffer(n int) []byte {
	if n <= 0 {
		return nil
	}
	raw := make([]byte, n+consts.DMAAlignment)
	off := 0
	if rem := uintptr(unsafe.Pointer(&raw[0])) % consts.DMAAlignment; rem != 0 {
		off = consts.DMAAlignment - int(rem)
	}
	return raw[off : off+n : off+n]
}
