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

// Package fat is the FAT mount layer. It owns the bounded mount and file
// handle tables, routes sector I/O to the physical transports of each mount,
// binds the host file operation contract to the external FAT engine and
// scans MBR partition tables to discover mountable volumes.
package fat

import (
	"sync"
	"sync/atomic"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/consts"
	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/fserr"
	"github.com/openembed/fatmount/pkg/vfs"
)

// Config bounds the adapter's fixed resource pools. Zero fields take the
// package defaults.
type Config struct {
	// MaxMounts is the mount table capacity. The slot index doubles as
	// the logical drive number handed to the engine.
	MaxMounts int

	// MaxFiles is the file handle table capacity, shared by all mounts.
	MaxFiles int

	// LinkMapSize is the inline fast-seek link map capacity in entries,
	// including the header slot.
	LinkMapSize int
}

func (c Config) withDefaults() Config {
	if c.MaxMounts <= 0 {
		c.MaxMounts = consts.MaxMounts
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = consts.MaxFiles
	}
	if c.LinkMapSize <= 1 {
		c.LinkMapSize = consts.LinkMapSize
	}
	return c
}

// TransferStats counts sector transfers of one mount by route.
type TransferStats struct {
	PIOTransfers    uint64
	DMATransfers    uint64
	StagedTransfers uint64
	SectorsRead     uint64
	SectorsWritten  uint64
}

// transferStats is the lock-free counter set updated by the disk shim.
type transferStats struct {
	pioTransfers    uint64
	dmaTransfers    uint64
	stagedTransfers uint64
	sectorsRead     uint64
	sectorsWritten  uint64
}

func (s *transferStats) snapshot() TransferStats {
	return TransferStats{
		PIOTransfers:    atomic.LoadUint64(&s.pioTransfers),
		DMATransfers:    atomic.LoadUint64(&s.dmaTransfers),
		StagedTransfers: atomic.LoadUint64(&s.stagedTransfers),
		SectorsRead:     atomic.LoadUint64(&s.sectorsRead),
		SectorsWritten:  atomic.LoadUint64(&s.sectorsWritten),
	}
}

// mountRecord is one mount table slot. A record is either fully populated
// and registered with the dispatch registry, or absent from the table; no
// partial state survives a mount or unmount call.
type mountRecord struct {
	drive     int
	path      string
	mountID   string
	partition int

	volume  engine.Volume
	primary blockdev.Device
	dma     blockdev.Device // nil when absent or disabled for this mount

	status         engine.DiskStatus
	sectorSize     int
	clusterSectors int
	scratch        []byte // DMA staging buffer, one cluster, aligned

	stats transferStats
}

// fileHandle is one handle table slot. Exactly one of file and dir is set;
// the descriptor handed to callers is the slot index plus one so that zero
// never names a valid handle.
type fileHandle struct {
	rec   *mountRecord
	file  engine.File
	dir   engine.Dir
	flags int

	// inline is the fixed-capacity link map buffer. linkMap aliases it
	// after a successful inline build; a heap-grown map sets heapMap so
	// release never confuses the two.
	inline   []uint32
	linkMap  []uint32
	heapMap  bool
	mapTried bool

	dirScratch engine.FileInfo
}

// Adapter is the mount subsystem context. All mutable state is serialized
// by one mutex; operations block the calling goroutine for the duration of
// physical I/O and are not cancellable once issued.
type Adapter struct {
	engine   engine.Engine
	registry *vfs.Registry
	config   Config

	mu      sync.Mutex
	mounts  []*mountRecord
	files   []*fileHandle
	initted bool
}

// New creates an initialized adapter serving mounts through eng and
// registering mount handlers with registry.
func New(eng engine.Engine, registry *vfs.Registry, config Config) *Adapter {
	config = config.withDefaults()
	return &Adapter{
		engine:   eng,
		registry: registry,
		config:   config,
		mounts:   make([]*mountRecord, config.MaxMounts),
		files:    make([]*fileHandle, config.MaxFiles),
		initted:  true,
	}
}

// record resolves a logical drive number to its mount record. Callers must
// hold a.mu.
func (a *Adapter) record(drive int) *mountRecord {
	if drive < 0 || drive >= len(a.mounts) {
		return nil
	}
	return a.mounts[drive]
}

// lookup resolves a mount path to its record. Callers must hold a.mu.
func (a *Adapter) lookup(path string) *mountRecord {
	for _, rec := range a.mounts {
		if rec != nil && rec.path == path {
			return rec
		}
	}
	return nil
}

// allocHandle claims the first free handle slot. Callers must hold a.mu.
func (a *Adapter) allocHandle(rec *mountRecord) (int, *fileHandle, error) {
	for i, h := range a.files {
		if h == nil {
			handle := &fileHandle{
				rec:    rec,
				inline: make([]uint32, a.config.LinkMapSize),
			}
			a.files[i] = handle
			return i + 1, handle, nil
		}
	}
	return 0, nil, fserr.ErrTableFull
}

// resolveHandle validates a descriptor and returns its handle. Callers must
// hold a.mu.
func (a *Adapter) resolveHandle(fd int) (*fileHandle, error) {
	if fd < 1 || fd > len(a.files) || a.files[fd-1] == nil {
		return nil, fserr.ErrBadDescriptor
	}
	return a.files[fd-1], nil
}

// releaseHandle closes the engine object of descriptor fd and clears its
// slot. A heap-grown link map is dropped before the slot is cleared.
// Callers must hold a.mu.
func (a *Adapter) releaseHandle(fd int) error {
	handle, err := a.resolveHandle(fd)
	if err != nil {
		return err
	}

	if handle.heapMap {
		handle.linkMap = nil
		handle.heapMap = false
	}

	var res engine.Result
	switch {
	case handle.file != nil:
		res = handle.file.Close()
	case handle.dir != nil:
		res = handle.dir.Close()
	}
	a.files[fd-1] = nil
	return fserr.New("close", res)
}

// MountInfo is a diagnostic snapshot of one active mount.
type MountInfo struct {
	Drive      int
	Path       string
	MountID    string
	TotalBytes uint64
	FreeBytes  uint64
	Stats      TransferStats
}

// Mounts reports a snapshot of all active mounts.
func (a *Adapter) Mounts() []MountInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	var infos []MountInfo
	for _, rec := range a.mounts {
		if rec == nil {
			continue
		}
		info := MountInfo{
			Drive:      rec.drive,
			Path:       rec.path,
			MountID:    rec.mountID,
			TotalBytes: uint64(rec.primary.CountBlocks()) * uint64(rec.sectorSize),
			Stats:      rec.stats.snapshot(),
		}
		if free, res := rec.volume.FreeClusters(); res == engine.ResOK {
			info.FreeBytes = uint64(free) * uint64(rec.clusterSectors) * uint64(rec.sectorSize)
		}
		infos = append(infos, info)
	}
	return infos
}
