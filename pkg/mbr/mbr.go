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

// Package mbr reads classic master boot records and classifies FAT
// partition types for the mount scanner.
package mbr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/consts"
)

// ErrNoPartitionTable denotes a sector without the 0x55AA boot signature;
// the device is treated as unpartitioned.
var ErrNoPartitionTable = errors.New("MBR partition table not found")

// FATFamily is the FAT width classification derived from a partition type
// byte.
type FATFamily int

const (
	NotFAT FATFamily = 0
	FAT16  FATFamily = 16
	FAT32  FATFamily = 32
)

// Classify maps an MBR partition type byte to its FAT family.
//   - 0x04: FAT16 up to 32 MB
//   - 0x06: FAT16 over 32 MB up to 2 GB
//   - 0x0B, 0x0C: FAT32 (CHS and LBA variants)
func Classify(partitionType uint8) FATFamily {
	switch partitionType {
	case 0x04, 0x06:
		return FAT16
	case 0x0B, 0x0C:
		return FAT32
	default:
		return NotFAT
	}
}

// CHS denotes Cylinder-Head-Sector address.
type CHS struct {
	Head     uint8 // 1 byte.
	Sector   uint8 // 1 byte.
	Cylinder uint8 // 1 byte.
}

// PartEntry denotes one 16-byte partition table entry.
type PartEntry struct {
	Status        uint8  // 1 byte.
	FirstCHS      CHS    // 3 bytes.
	PartitionType uint8  // 1 byte.
	LastCHS       CHS    // 3 bytes.
	FirstLBA      uint32 // 4 bytes.
	NumSectors    uint32 // 4 bytes.
}

// ClassicHeader denotes a classical generic MBR header. Partition entries
// begin at offset 0x1BE, the boot signature at 0x1FE.
type ClassicHeader struct {
	BootstrapCode    [446]byte
	PartitionEntries [consts.MaxPartitions]PartEntry // 4 x 16 bytes.
	BootSignature    uint16                          // 2 bytes.
}

// Partition is one discovered partition.
type Partition struct {
	// Number is the 0-based slot in the partition table.
	Number int

	// Type is the raw partition type byte.
	Type uint8

	// Family is the FAT classification of Type.
	Family FATFamily

	FirstLBA   uint32
	NumSectors uint32
}

// Table is a parsed MBR.
type Table struct {
	entries [consts.MaxPartitions]PartEntry
}

// Partitions returns the non-empty entries in table order. Entries with a
// zero type byte are empty and skipped.
func (t *Table) Partitions() []Partition {
	var parts []Partition
	for i, entry := range t.entries {
		if entry.PartitionType == 0 {
			continue
		}
		parts = append(parts, Partition{
			Number:     i,
			Type:       entry.PartitionType,
			Family:     Classify(entry.PartitionType),
			FirstLBA:   entry.FirstLBA,
			NumSectors: entry.NumSectors,
		})
	}
	return parts
}

// Entry returns the partition in table slot n, reporting false for empty
// slots or out-of-range n.
func (t *Table) Entry(n int) (Partition, bool) {
	if n < 0 || n >= len(t.entries) || t.entries[n].PartitionType == 0 {
		return Partition{}, false
	}
	entry := t.entries[n]
	return Partition{
		Number:     n,
		Type:       entry.PartitionType,
		Family:     Classify(entry.PartitionType),
		FirstLBA:   entry.FirstLBA,
		NumSectors: entry.NumSectors,
	}, true
}

// Probe reads and parses one MBR sector.
func Probe(reader io.Reader) (*Table, error) {
	data := make([]byte, consts.SectorSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, err
	}
	return ProbeSector(data)
}

// ProbeSector parses an in-memory boot sector.
func ProbeSector(data []byte) (*Table, error) {
	if len(data) < consts.SectorSize {
		return nil, ErrNoPartitionTable
	}
	if !bytes.HasSuffix(data[:consts.SectorSize], []byte{0x55, 0xAA}) {
		return nil, ErrNoPartitionTable
	}

	var header ClassicHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, err
	}

	table := &Table{entries: header.PartitionEntries}
	return table, nil
}

// ProbeDevice reads the boot sector of an initialized device and parses it.
func ProbeDevice(dev blockdev.Device) (*Table, error) {
	data := make([]byte, consts.SectorSize)
	if err := dev.ReadBlocks(0, 1, data); err != nil {
		return nil, err
	}
	return ProbeSector(data)
}
