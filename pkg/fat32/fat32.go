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

// Package fat32 probes FAT32 boot records for diagnostic reporting. The
// mount scanner and the image CLI use it to describe discovered volumes;
// actual filesystem access goes through the external FAT engine.
package fat32

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/consts"
)

// ErrNotFAT32 denotes a boot record without a FAT32 signature.
var ErrNotFAT32 = errors.New("FAT32 filesystem not found")

// EBPB is the FAT32 Extended BIOS Parameter Block.
type EBPB struct {
	Ignored     [3]uint8
	Sysid       [8]uint8 // OEM name/version
	SectorSize  [2]uint8 // Number of bytes per sector
	ClusterSize uint8    // Number of sectors per cluster
	Reserved    uint16   // Number of reserved sectors
	Fats        uint8    // Number of FAT copies
	DirEntries  [2]uint8 // Number of root directory entries
	Sectors     [2]uint8 // Total number of sectors in the filesystem
	Media       uint8    // Media descriptor type
	FatLength   uint16   // Number of sectors per FAT
	SecsTrack   uint16   // Number of sectors per track
	Heads       uint16   // Number of heads
	Hidden      uint32   // Number of hidden sectors
	/* BIOS Parameter Block ends here */
	TotalSect    uint32
	Fat32Length  uint32
	Flags        uint16
	Version      [2]uint8
	RootCluster  uint32
	FsinfoSector uint16
	BackupBoot   uint16
	Reserved2    [6]uint16
	Unknown      [3]uint8
	Serno        [4]uint8
	Label        [11]uint8
	Magic        [8]uint8
	Dummy2       [0x1fe - 0x5a]uint8
	Pmagic       [2]uint8
}

// ReadEBPB reads a FAT32 Extended BIOS Parameter Block.
func ReadEBPB(reader io.Reader) (*EBPB, error) {
	var ebpb EBPB
	if err := binary.Read(reader, binary.LittleEndian, &ebpb); err != nil {
		return nil, err
	}

	if string(ebpb.Magic[:]) != "FAT32   " {
		return nil, ErrNotFAT32
	}

	return &ebpb, nil
}

// FAT32 contains probed filesystem information.
type FAT32 struct {
	id            string
	label         string
	totalCapacity uint64
	freeCapacity  uint64
	clusterSize   uint64
}

// ID returns the volume serial in its canonical "XXXX-XXXX" form.
func (f *FAT32) ID() string {
	return f.id
}

// Label returns the volume label.
func (f *FAT32) Label() string {
	return f.label
}

// Type returns "fat32".
func (f *FAT32) Type() string {
	return "fat32"
}

// TotalCapacity returns total capacity of the filesystem in bytes.
func (f *FAT32) TotalCapacity() uint64 {
	return f.totalCapacity
}

// FreeCapacity returns free capacity of the filesystem in bytes.
func (f *FAT32) FreeCapacity() uint64 {
	return f.freeCapacity
}

// ClusterSize returns the allocation cluster size in bytes.
func (f *FAT32) ClusterSize() uint64 {
	return f.clusterSize
}

// Probe reads the EBPB and FSInfo sector of a FAT32 volume. The reader must
// be positioned at the volume's first sector.
func Probe(reader io.ReadSeeker) (*FAT32, error) {
	base, err := reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	ebpb, err := ReadEBPB(reader)
	if err != nil {
		return nil, err
	}

	blockSize := binary.LittleEndian.Uint16(ebpb.SectorSize[:])
	if _, err = reader.Seek(base+int64(ebpb.FsinfoSector)*int64(blockSize), io.SeekStart); err != nil {
		return nil, err
	}

	data := make([]byte, consts.SectorSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint32(data[0:4]) != 0x41615252 {
		return nil, fmt.Errorf("FSInfo lead signature mismatch; expected=%#x, got=%#x", 0x41615252, binary.LittleEndian.Uint32(data[0:4]))
	}

	if binary.LittleEndian.Uint32(data[484:488]) != 0x61417272 {
		return nil, fmt.Errorf("FSInfo struct signature mismatch; expected=%#x, got=%#x", 0x61417272, binary.LittleEndian.Uint32(data[484:488]))
	}

	freeClusters := binary.LittleEndian.Uint32(data[488:492])
	return &FAT32{
		id:            fmt.Sprintf("%04X-%04X", binary.LittleEndian.Uint16(ebpb.Serno[2:4]), binary.LittleEndian.Uint16(ebpb.Serno[0:2])),
		label:         string(ebpb.Label[:]),
		totalCapacity: uint64(ebpb.TotalSect) * uint64(blockSize),
		freeCapacity:  uint64(freeClusters) * uint64(ebpb.ClusterSize) * uint64(blockSize),
		clusterSize:   uint64(ebpb.ClusterSize) * uint64(blockSize),
	}, nil
}

// ProbeDevice probes the FAT32 volume starting at the given sector of an
// initialized device.
func ProbeDevice(dev blockdev.Device, startSector int64) (*FAT32, error) {
	return Probe(&deviceReader{dev: dev, base: startSector << dev.BlockShift()})
}

// deviceReader adapts a block device to io.ReadSeeker for the probe. Reads
// are sector-buffered; short tail reads come from the last partial sector.
type deviceReader struct {
	dev  blockdev.Device
	base int64
	off  int64
}

func (r *deviceReader) Read(p []byte) (int, error) {
	shift := r.dev.BlockShift()
	size := int64(1) << shift
	abs := r.base + r.off
	sector := abs >> shift
	skew := abs & (size - 1)

	count := int((skew + int64(len(p)) + size - 1) >> shift)
	buf := make([]byte, int64(count)<<shift)
	if err := r.dev.ReadBlocks(sector, count, buf); err != nil {
		return 0, err
	}
	n := copy(p, buf[skew:])
	r.off += int64(n)
	return n, nil
}

func (r *deviceReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.off = offset - r.base
	case io.SeekCurrent:
		r.off += offset
	default:
		return 0, errors.New("unsupported whence")
	}
	return r.base + r.off, nil
}
