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

// Package engine defines the boundary to the external FAT filesystem engine.
// The mount layer consumes these interfaces; it never implements FAT cluster
// chain traversal itself. Volume handles are explicit and per-call, so no
// current-drive selection state exists at this boundary.
package engine

import "time"

// AccessMode is the file access mode passed to Volume.OpenFile.
type AccessMode uint8

const (
	AccessRead  AccessMode = 0x01
	AccessWrite AccessMode = 0x02

	AccessOpenExisting AccessMode = 0x00
	AccessCreateNew    AccessMode = 0x04
	AccessCreateAlways AccessMode = 0x08
	AccessOpenAlways   AccessMode = 0x10
)

// Attrib is the FAT directory entry attribute bit set.
type Attrib uint8

const (
	AttrReadOnly Attrib = 1 << iota
	AttrHidden
	AttrSystem
	AttrVolumeID
	AttrDirectory
	AttrArchive
)

// FileInfo is one directory entry as reported by Dir.Read and Volume.Stat.
type FileInfo struct {
	Name    string
	AltName string
	Size    int64
	Date    uint16 // FAT packed date
	Time    uint16 // FAT packed time
	Attr    Attrib
}

// IsDir reports whether the entry describes a directory.
func (fi *FileInfo) IsDir() bool {
	return fi.Attr&AttrDirectory != 0
}

// Clock supplies wall-clock time to the engine for directory entry
// timestamps. The host installs one at engine construction.
type Clock func() time.Time

// Engine is the external FAT engine. One Engine serves every mounted volume;
// MountVolume hands the engine the disk I/O callback it must use for all
// sector access on that logical drive.
type Engine interface {
	// MountVolume mounts the FAT volume on the given logical drive.
	// partition selects the 1-based MBR partition within the physical
	// device; 0 requests auto-detection of the first valid partition.
	MountVolume(drive, partition int, dio DiskIO) (Volume, Result)
}

// Volume is one mounted FAT filesystem instance.
type Volume interface {
	// Unmount releases the engine's volume state. The volume and every
	// object opened from it are invalid afterwards.
	Unmount() Result

	OpenFile(path string, mode AccessMode) (File, Result)
	OpenDir(path string) (Dir, Result)

	Rename(oldpath, newpath string) Result
	Remove(path string) Result
	Mkdir(path string) Result
	Stat(path string) (FileInfo, Result)

	// FreeClusters reports the number of unallocated clusters.
	FreeClusters() (uint32, Result)

	// ClusterSize reports the allocation cluster size in sectors.
	ClusterSize() int

	// SectorOfCluster resolves a cluster number to its first absolute
	// sector. Returns 0 for an invalid cluster number.
	SectorOfCluster(clust uint32) int64
}

// File is an open FAT file object.
type File interface {
	Read(p []byte) (n int, res Result)
	Write(p []byte) (n int, res Result)

	// Seek moves the read/write pointer to the absolute byte offset.
	// Seeking past the end of a writable file extends it.
	Seek(offset int64) Result

	// Tell reports the current read/write pointer. O(1).
	Tell() int64

	// Size reports the file size in bytes. O(1).
	Size() int64

	Sync() Result
	Close() Result

	// FirstCluster reports the file's first allocation cluster number.
	FirstCluster() uint32

	// SetLinkMap installs a fast-seek cluster link map table. The caller
	// stores the table capacity in tbl[0]. If the capacity suffices, the
	// engine fills the table, retains it for subsequent seeks and returns
	// ResOK. If not, the engine stores the required capacity in tbl[0]
	// and returns ResNotEnoughCore; no table is retained.
	SetLinkMap(tbl []uint32) Result

	// LinkMap returns the currently installed link map table, or nil.
	LinkMap() []uint32
}

// Dir is an open FAT directory iterator.
type Dir interface {
	// Read fetches the next directory entry into info. End of directory
	// is reported as ResOK with an empty info.Name.
	Read(info *FileInfo) Result

	// Rewind resets the iterator to the first entry.
	Rewind() Result

	Close() Result
}

// PackTime encodes t in the FAT timestamp format: bits 31-25 year since
// 1980, 24-21 month, 20-16 day, 15-11 hour, 10-5 minute, 4-0 seconds/2.
func PackTime(t time.Time) uint32 {
	t = t.UTC()
	return uint32(t.Year()-1980)<<25 |
		uint32(t.Month())<<21 |
		uint32(t.Day())<<16 |
		uint32(t.Hour())<<11 |
		uint32(t.Minute())<<5 |
		uint32(t.Second()/2)
}

// UnpackTime decodes a FAT timestamp produced by PackTime.
func UnpackTime(ft uint32) time.Time {
	return time.Date(
		int(ft>>25)+1980,
		time.Month(ft>>21&0xf),
		int(ft>>16&0x1f),
		int(ft>>11&0x1f),
		int(ft>>5&0x3f),
		int(ft&0x1f)*2,
		0, time.UTC,
	)
}
