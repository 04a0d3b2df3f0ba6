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

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/fserr"
)

// ErrShutdown reports an operation on an adapter after Shutdown.
var ErrShutdown = errors.New("adapter is shut down")

// Mount mounts the FAT volume in the given partition of primary at path and
// registers its handler with the dispatch registry. partition is the
// 1-based MBR partition number; 0 auto-detects the first valid partition.
// dma, when non-nil, is the DMA-capable sibling transport used
// opportunistically for aligned multi-sector reads.
//
// The mount record takes ownership of both devices: they are shut down when
// the mount is released. Callers sharing a medium across several mounts pass
// a partition window per mount, as the bus scanner does.
func (a *Adapter) Mount(path string, primary, dma blockdev.Device, partition int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initted {
		return ErrShutdown
	}
	if a.lookup(path) != nil {
		return fserr.New("mount", engine.ResExist)
	}

	drive := -1
	for i, rec := range a.mounts {
		if rec == nil {
			drive = i
			break
		}
	}
	if drive < 0 {
		return fserr.ErrMountTableFull
	}

	rec := &mountRecord{
		drive:     drive,
		path:      path,
		mountID:   uuid.New().String(),
		partition: partition,
		primary:   primary,
		dma:       dma,
		status:    engine.StatusNoInit,
	}
	a.mounts[drive] = rec

	// Transport bring-up happens inside the engine's mount sequence via
	// diskIO.Initialize; a primary transport failure surfaces here as a
	// not-ready result.
	volume, res := a.engine.MountVolume(drive, partition, &diskIO{adapter: a})
	if res != engine.ResOK {
		a.mounts[drive] = nil
		err := fserr.New("mount", res)
		klog.ErrorS(err, "unable to mount volume", "path", path, "drive", drive, "partition", partition)
		return multierr.Append(err, shutdownDevices(rec))
	}
	rec.volume = volume
	rec.clusterSectors = volume.ClusterSize()

	if rec.dma != nil && dmaStaging {
		rec.scratch = blockdev.AlignedBuffer(rec.clusterSectors * rec.sectorSize)
	}

	a.reportCapacity(rec)

	if err := a.registry.Add(path, &mountHandler{adapter: a, rec: rec}); err != nil {
		a.mounts[drive] = nil
		klog.ErrorS(err, "unable to register mount handler", "path", path, "drive", drive)
		return multierr.Combine(
			err,
			fserr.New("unmount", volume.Unmount()),
			shutdownDevices(rec),
		)
	}

	klog.V(1).InfoS("mounted volume", "path", path, "drive", drive, "partition", partition,
		"mountID", rec.mountID, "DMA", rec.dma != nil)
	return nil
}

// reportCapacity logs free and total capacity of a freshly mounted volume.
// Diagnostic only; a free-space query failure does not fail the mount.
func (a *Adapter) reportCapacity(rec *mountRecord) {
	total := uint64(rec.primary.CountBlocks()) * uint64(rec.sectorSize)
	free, res := rec.volume.FreeClusters()
	if res != engine.ResOK {
		klog.V(2).InfoS("free space query failed", "path", rec.path, "result", res)
		return
	}
	freeBytes := uint64(free) * uint64(rec.clusterSectors) * uint64(rec.sectorSize)
	klog.V(1).InfoS("volume capacity", "path", rec.path,
		"total", humanize.IBytes(total), "free", humanize.IBytes(freeBytes))
}

func shutdownDevices(rec *mountRecord) error {
	err := rec.primary.Shutdown()
	if rec.dma != nil {
		err = multierr.Append(err, rec.dma.Shutdown())
	}
	return err
}

// unmountLocked tears down rec. The handler is removed from the dispatch
// registry before any owned resource is released so that no host call can
// observe a half-freed record. Open handles on the mount are released as
// part of the teardown. Callers must hold a.mu.
func (a *Adapter) unmountLocked(rec *mountRecord) error {
	err := a.registry.Remove(rec.path)

	for i, handle := range a.files {
		if handle != nil && handle.rec == rec {
			err = multierr.Append(err, a.releaseHandle(i+1))
		}
	}

	err = multierr.Combine(
		err,
		fserr.New("unmount", rec.volume.Unmount()),
		shutdownDevices(rec),
	)
	a.mounts[rec.drive] = nil

	klog.V(1).InfoS("unmounted volume", "path", rec.path, "drive", rec.drive, "mountID", rec.mountID)
	return err
}

// Unmount unmounts the volume at path. Unmounting a path that is not
// mounted reports ErrNoEntry and touches no other mount's state.
func (a *Adapter) Unmount(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initted {
		return ErrShutdown
	}
	rec := a.lookup(path)
	if rec == nil {
		return fserr.ErrNoEntry
	}
	return a.unmountLocked(rec)
}

// IsMounted reports whether a volume is mounted at path.
func (a *Adapter) IsMounted(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookup(path) != nil
}

// Shutdown unmounts every active mount and retires the adapter. A second
// call is a no-op.
func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initted {
		return nil
	}
	var err error
	for _, rec := range a.mounts {
		if rec != nil {
			err = multierr.Append(err, a.unmountLocked(rec))
		}
	}
	a.initted = false
	return err
}
