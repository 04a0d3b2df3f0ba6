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

package consts

const (
	// AppName denotes application/library/tool name.
	AppName = "fatmount"

	// AppPrettyName denotes application/library/tool pretty name.
	AppPrettyName = "FATMount"

	// AppCapsName denotes application/library/tool name in capital letters.
	AppCapsName = "FATMOUNT"

	// MaxMounts is the fixed capacity of the mount table. One slot per
	// mounted logical volume; the slot index is the logical drive number.
	MaxMounts = 16

	// MaxFiles is the fixed capacity of the file handle table shared by
	// all mounts.
	MaxFiles = 16

	// LinkMapSize is the inline capacity, in entries, of the per-file
	// fast-seek link map.
	LinkMapSize = 32

	// SectorSize is the MBR sector size. Individual devices report their
	// own sector geometry; the boot sector itself is always 512 bytes.
	SectorSize = 512

	// MaxPartitions is the number of primary partition entries in an MBR.
	MaxPartitions = 4

	// DMAAlignment is the platform DMA boundary in bytes. Buffers whose
	// base address is not a multiple of this cannot be targeted by the
	// DMA transport directly.
	DMAAlignment = 32

	// MetricsPort is the default port of the metrics endpoint.
	MetricsPort = 10453
)
