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

package engine

// DiskStatus is the bit set reported by the disk layer for a logical drive.
type DiskStatus uint8

const (
	// StatusNoInit indicates the drive has not been initialized.
	StatusNoInit DiskStatus = 1 << iota
	// StatusNoDisk indicates no medium in the drive.
	StatusNoDisk
	// StatusProtected indicates the medium is write protected.
	StatusProtected
)

// DiskResult is the return code of disk layer operations.
type DiskResult int

const (
	DiskOK             DiskResult = iota // successful
	DiskError                            // R/W error
	DiskWriteProtected                   // write protected
	DiskNotReady                         // not ready
	DiskParError                         // invalid parameter
)

// IoctlCmd is a disk layer control command.
type IoctlCmd uint8

const (
	// CtrlSync flushes pending writes to the medium.
	CtrlSync IoctlCmd = iota
	// GetSectorCount reports the total sector count into *int64 data.
	GetSectorCount
	// GetSectorSize reports the sector size in bytes into *int data.
	GetSectorSize
	// GetBlockSize reports the erase block size in sectors into *int data.
	GetBlockSize
	// CtrlTrim hints that a sector range is no longer used. Accepted as a
	// no-op by this layer.
	CtrlTrim
)

// DiskIO is the sector access contract the FAT engine calls back into for a
// given logical drive number. The mount layer implements it by routing
// requests to the physical transports owned by the drive's mount record.
type DiskIO interface {
	// Initialize brings up the drive's transports and returns its status.
	Initialize(drive int) DiskStatus

	// Status reports the last known drive status.
	Status(drive int) DiskStatus

	// Read reads count sectors starting at sector into buf.
	Read(drive int, buf []byte, sector int64, count int) DiskResult

	// Write writes count sectors starting at sector from buf.
	Write(drive int, buf []byte, sector int64, count int) DiskResult

	// Ioctl performs a control command. data is command dependent.
	Ioctl(drive int, cmd IoctlCmd, data interface{}) DiskResult
}
