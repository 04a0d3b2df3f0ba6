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

// Package blockdev defines the physical block device contract consumed by
// the mount layer and provides partition-window, memory-backed and
// file-backed implementations along with DMA alignment helpers.
package blockdev

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrTooLarge reports a transfer exceeding the device or partition window.
// The disk shim maps it to a parameter error rather than an I/O error.
var ErrTooLarge = &transportError{msg: "request too large for device", errno: unix.EOVERFLOW}

// ErrNotInitialized reports access to a device before Init or after
// Shutdown.
var ErrNotInitialized = errors.New("blockdev: device not initialized")

type transportError struct {
	msg   string
	errno unix.Errno
}

func (e *transportError) Error() string { return "blockdev: " + e.msg }
func (e *transportError) Unwrap() error { return e.errno }

// Device is one physical block transport. Implementations are owned
// exclusively by their mount record and are not safe for unsynchronized
// concurrent use.
type Device interface {
	// Init brings the transport up. Idempotent.
	Init() error

	// Shutdown releases transport state. Idempotent.
	Shutdown() error

	// ReadBlocks reads count sectors starting at start into buf.
	ReadBlocks(start int64, count int, buf []byte) error

	// WriteBlocks writes count sectors starting at start from buf.
	WriteBlocks(start int64, count int, buf []byte) error

	// CountBlocks reports the total number of sectors.
	CountBlocks() int64

	// Flush commits pending writes to the medium.
	Flush() error

	// BlockShift reports log2 of the sector size in bytes.
	BlockShift() uint
}

// SectorSize reports the sector size of dev in bytes.
func SectorSize(dev Device) int {
	return 1 << dev.BlockShift()
}
