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
	"go.uber.org/multierr"
)

// Bus is one physical storage transport (an SD-like serial bus or an
// ATA-like parallel bus). Bus drivers live below this layer; the partition
// scanner consumes them only through this contract.
type Bus interface {
	// Name is the mount path stem for volumes found on this bus, without
	// the leading slash ("sd", "ide").
	Name() string

	// Init probes the bus for a medium. An error means no usable device
	// is present; the scanner treats that as "nothing to mount".
	Init() error

	// WholeDisk returns the full-disk device for the medium. The
	// partition scanner reads the MBR through it and derives a
	// per-partition window for each mount; the medium itself stays
	// owned by the bus and is shut down with it.
	WholeDisk() (Device, error)

	// DMADisk returns the DMA-capable sibling device, if the bus has
	// one. Buses without DMA return false.
	DMADisk() (Device, bool)

	// Shutdown releases bus state. Idempotent.
	Shutdown() error
}

// SimpleBus adapts explicit devices to the Bus contract. Test rigs and the
// image CLI use it; real bus drivers implement Bus directly.
type SimpleBus struct {
	BusName string
	Disk    Device
	DMA     Device
}

func (b *SimpleBus) Name() string { return b.BusName }

func (b *SimpleBus) Init() error {
	if b.Disk == nil {
		return ErrNotInitialized
	}
	return nil
}

func (b *SimpleBus) WholeDisk() (Device, error) {
	if b.Disk == nil {
		return nil, ErrNotInitialized
	}
	return b.Disk, nil
}

func (b *SimpleBus) DMADisk() (Device, bool) {
	return b.DMA, b.DMA != nil
}

func (b *SimpleBus) Shutdown() error {
	var err error
	if b.Disk != nil {
		err = b.Disk.Shutdown()
	}
	if b.DMA != nil {
		err = multierr.Append(err, b.DMA.Shutdown())
	}
	return err
}
