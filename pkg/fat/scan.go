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

package fat

import (
	"errors"
	"strconv"

	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/consts"
	"github.com/openembed/fatmount/pkg/mbr"
)

// mountPath names the mount point of partition number n (0-based) on a
// bus: the first partition mounts at /<bus>, the rest at /<bus>1../<bus>3.
func mountPath(bus blockdev.Bus, n int) string {
	if n == 0 {
		return "/" + bus.Name()
	}
	return "/" + bus.Name() + strconv.Itoa(n)
}

// MountBus scans the MBR partition table of the bus's disk and mounts every
// FAT partition found. A bus without a usable medium or without a partition
// table mounts nothing and is not an error. The first partition is paired
// with the bus's DMA transport when one exists.
//
// Each mount receives its own partition window over the bus's disk, so the
// mount record owns its transport handles outright and unmounting one
// partition leaves its siblings readable. The medium behind the windows is
// shut down by UnmountBus, not by any single unmount.
func (a *Adapter) MountBus(bus blockdev.Bus) error {
	if err := bus.Init(); err != nil {
		klog.V(1).InfoS("no usable medium on bus", "bus", bus.Name(), "err", err)
		return nil
	}
	disk, err := bus.WholeDisk()
	if err != nil {
		return err
	}
	if err := disk.Init(); err != nil {
		klog.V(1).InfoS("unable to initialize disk", "bus", bus.Name(), "err", err)
		return nil
	}

	table, err := mbr.ProbeDevice(disk)
	if err != nil {
		if errors.Is(err, mbr.ErrNoPartitionTable) {
			klog.V(1).InfoS("no partition table on bus", "bus", bus.Name())
			return nil
		}
		return err
	}

	var merr error
	for _, part := range table.Partitions() {
		if part.Family == mbr.NotFAT {
			klog.InfoS("skipping unknown filesystem partition",
				"bus", bus.Name(), "partition", part.Number, "type", part.Type)
			continue
		}

		var dma blockdev.Device
		if part.Number == 0 {
			if raw, found := bus.DMADisk(); found {
				dma = blockdev.Partition(raw, int64(part.FirstLBA), int64(part.NumSectors))
			}
		}
		window := blockdev.Partition(disk, int64(part.FirstLBA), int64(part.NumSectors))
		path := mountPath(bus, part.Number)
		if err := a.Mount(path, window, dma, 0); err != nil {
			klog.ErrorS(err, "unable to mount partition",
				"bus", bus.Name(), "partition", part.Number, "path", path)
			merr = multierr.Append(merr, err)
			continue
		}
		klog.InfoS("mounted partition", "bus", bus.Name(), "partition", part.Number,
			"path", path, "family", int(part.Family))
	}
	return merr
}

// UnmountBus unmounts every volume mounted from the bus and shuts the bus
// down. Paths that are not mounted are skipped.
func (a *Adapter) UnmountBus(bus blockdev.Bus) error {
	var merr error
	for n := 0; n < consts.MaxPartitions; n++ {
		path := mountPath(bus, n)
		if a.IsMounted(path) {
			merr = multierr.Append(merr, a.Unmount(path))
		}
	}
	return multierr.Append(merr, bus.Shutdown())
}

// MountAll scans and mounts every bus in turn.
func (a *Adapter) MountAll(buses ...blockdev.Bus) error {
	var merr error
	for _, bus := range buses {
		merr = multierr.Append(merr, a.MountBus(bus))
	}
	return merr
}

// UnmountAll unmounts every bus in turn.
func (a *Adapter) UnmountAll(buses ...blockdev.Bus) error {
	var merr error
	for _, bus := range buses {
		merr = multierr.Append(merr, a.UnmountBus(bus))
	}
	return merr
}
