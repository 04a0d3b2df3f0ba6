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
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/engine"
)

// diskIO is the sector access shim the engine calls back into. It resolves
// the logical drive to its mount record and routes the transfer to the
// primary or DMA transport.
type diskIO struct {
	adapter *Adapter
}

// record resolves drive without taking the adapter lock: engine callbacks
// run on the goroutine of the adapter operation that entered the engine,
// which already holds it.
func (d *diskIO) record(drive int) *mountRecord {
	return d.adapter.record(drive)
}

// Initialize brings up both transports of the drive's mount. DMA transport
// failure only disables DMA for this mount; primary transport failure marks
// the drive not ready.
func (d *diskIO) Initialize(drive int) engine.DiskStatus {
	rec := d.record(drive)
	if rec == nil {
		return engine.StatusNoInit | engine.StatusNoDisk
	}

	if err := rec.primary.Init(); err != nil {
		klog.ErrorS(err, "unable to initialize primary transport", "drive", drive, "path", rec.path)
		rec.status = engine.StatusNoInit
		return rec.status
	}

	if rec.dma != nil {
		if err := rec.dma.Init(); err != nil {
			klog.ErrorS(err, "DMA transport initialization failed; DMA disabled for this mount", "drive", drive, "path", rec.path)
			rec.dma = nil
		}
	}

	rec.status = 0
	rec.sectorSize = blockdev.SectorSize(rec.primary)
	return rec.status
}

func (d *diskIO) Status(drive int) engine.DiskStatus {
	rec := d.record(drive)
	if rec == nil {
		return engine.StatusNoInit | engine.StatusNoDisk
	}
	return rec.status
}

func diskResult(err error) engine.DiskResult {
	switch {
	case err == nil:
		return engine.DiskOK
	case errors.Is(err, blockdev.ErrTooLarge):
		return engine.DiskParError
	case errors.Is(err, blockdev.ErrNotInitialized):
		return engine.DiskNotReady
	default:
		return engine.DiskError
	}
}

// Read reads count sectors into buf. Multi-sector transfers use the DMA
// transport when buf is DMA-aligned; misaligned transfers of at most one
// cluster are staged through the mount's scratch buffer; everything else
// goes through the primary transport.
func (d *diskIO) Read(drive int, buf []byte, sector int64, count int) engine.DiskResult {
	rec := d.record(drive)
	if rec == nil {
		return engine.DiskNotReady
	}
	if rec.status&engine.StatusNoInit != 0 {
		return engine.DiskNotReady
	}

	nbytes := count << rec.primary.BlockShift()
	if count > 1 && rec.dma != nil {
		switch {
		case blockdev.Aligned(buf):
			if err := rec.dma.ReadBlocks(sector, count, buf); err != nil {
				klog.V(3).ErrorS(err, "DMA read failed", "drive", drive, "sector", sector, "count", count)
				return diskResult(err)
			}
			atomic.AddUint64(&rec.stats.dmaTransfers, 1)
			atomic.AddUint64(&rec.stats.sectorsRead, uint64(count))
			return engine.DiskOK

		case dmaStaging && rec.scratch != nil && count <= rec.clusterSectors:
			if err := rec.dma.ReadBlocks(sector, count, rec.scratch[:nbytes]); err != nil {
				klog.V(3).ErrorS(err, "staged DMA read failed", "drive", drive, "sector", sector, "count", count)
				return diskResult(err)
			}
			copy(buf, rec.scratch[:nbytes])
			atomic.AddUint64(&rec.stats.stagedTransfers, 1)
			atomic.AddUint64(&rec.stats.sectorsRead, uint64(count))
			return engine.DiskOK
		}
	}

	if err := rec.primary.ReadBlocks(sector, count, buf); err != nil {
		klog.V(3).ErrorS(err, "read failed", "drive", drive, "sector", sector, "count", count)
		return diskResult(err)
	}
	atomic.AddUint64(&rec.stats.pioTransfers, 1)
	atomic.AddUint64(&rec.stats.sectorsRead, uint64(count))
	return engine.DiskOK
}

// Write writes count sectors from buf. Writes route only through the
// primary transport.
func (d *diskIO) Write(drive int, buf []byte, sector int64, count int) engine.DiskResult {
	rec := d.record(drive)
	if rec == nil {
		return engine.DiskNotReady
	}
	if rec.status&engine.StatusNoInit != 0 {
		return engine.DiskNotReady
	}
	if rec.status&engine.StatusProtected != 0 {
		return engine.DiskWriteProtected
	}

	if err := rec.primary.WriteBlocks(sector, count, buf); err != nil {
		klog.V(3).ErrorS(err, "write failed", "drive", drive, "sector", sector, "count", count)
		return diskResult(err)
	}
	atomic.AddUint64(&rec.stats.pioTransfers, 1)
	atomic.AddUint64(&rec.stats.sectorsWritten, uint64(count))
	return engine.DiskOK
}

// Ioctl serves the disk control command set. CtrlTrim is accepted as a
// no-op; unknown commands return a parameter error.
func (d *diskIO) Ioctl(drive int, cmd engine.IoctlCmd, data interface{}) engine.DiskResult {
	rec := d.record(drive)
	if rec == nil {
		return engine.DiskNotReady
	}

	switch cmd {
	case engine.CtrlSync:
		return diskResult(rec.primary.Flush())

	case engine.GetSectorCount:
		out, ok := data.(*int64)
		if !ok {
			return engine.DiskParError
		}
		*out = rec.primary.CountBlocks()
		return engine.DiskOK

	case engine.GetSectorSize:
		out, ok := data.(*int)
		if !ok {
			return engine.DiskParError
		}
		*out = blockdev.SectorSize(rec.primary)
		return engine.DiskOK

	case engine.GetBlockSize:
		out, ok := data.(*int)
		if !ok {
			return engine.DiskParError
		}
		// Erase block geometry is not exposed by the transports.
		*out = 1
		return engine.DiskOK

	case engine.CtrlTrim:
		return engine.DiskOK

	default:
		return engine.DiskParError
	}
}
