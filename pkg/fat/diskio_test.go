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
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/vfs"
)

// countingDevice tracks transfer calls to its underlying device.
type countingDevice struct {
	blockdev.Device
	reads  int
	writes int
}

func (c *countingDevice) ReadBlocks(start int64, count int, buf []byte) error {
	c.reads++
	return c.Device.ReadBlocks(start, count, buf)
}

func (c *countingDevice) WriteBlocks(start int64, count int, buf []byte) error {
	c.writes++
	return c.Device.WriteBlocks(start, count, buf)
}

// testImage fills a deterministic pattern so routed reads can be compared
// byte for byte.
func testImage(sectors int) []byte {
	data := make([]byte, sectors*512)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func newRoutingRig(t *testing.T) (*Adapter, *countingDevice, *countingDevice, []byte) {
	t.Helper()
	image := testImage(64)

	primary := &countingDevice{Device: blockdev.NewMemDeviceBytes(append([]byte{}, image...))}
	dma := &countingDevice{Device: blockdev.NewMemDeviceBytes(append([]byte{}, image...))}

	adapter, _ := newTestAdapter(t, &engine.FakeEngine{})
	if err := adapter.Mount("/sd", primary, dma, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Drop the transfers made by the engine's own mount sequence.
	primary.reads, dma.reads = 0, 0
	return adapter, primary, dma, image
}

func TestDiskIORouting(t *testing.T) {
	adapter, primary, dma, image := newRoutingRig(t)
	defer adapter.Shutdown()
	dio := &diskIO{adapter: adapter}

	// Cluster size is 8 sectors for the fake engine.
	clusterBytes := 8 * 512

	// Single sector transfers use the primary transport.
	buf := blockdev.AlignedBuffer(512)
	if dr := dio.Read(0, buf, 3, 1); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.reads != 1 || dma.reads != 0 {
		t.Fatalf("single sector: expected primary only, got primary=%v dma=%v", primary.reads, dma.reads)
	}
	if !bytes.Equal(buf, image[3*512:4*512]) {
		t.Fatalf("single sector read returned wrong data")
	}

	// Aligned multi-sector transfers use the DMA transport.
	buf = blockdev.AlignedBuffer(4 * 512)
	if dr := dio.Read(0, buf, 8, 4); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.reads != 1 || dma.reads != 1 {
		t.Fatalf("aligned multi-sector: expected DMA, got primary=%v dma=%v", primary.reads, dma.reads)
	}
	if !bytes.Equal(buf, image[8*512:12*512]) {
		t.Fatalf("aligned DMA read returned wrong data")
	}

	// Misaligned transfers within one cluster stage through the scratch
	// buffer on the DMA transport.
	raw := blockdev.AlignedBuffer(4*512 + 32)
	misaligned := raw[1 : 1+4*512]
	if blockdev.Aligned(misaligned) {
		t.Fatalf("test buffer unexpectedly aligned")
	}
	if dr := dio.Read(0, misaligned, 16, 4); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.reads != 1 || dma.reads != 2 {
		t.Fatalf("staged: expected DMA, got primary=%v dma=%v", primary.reads, dma.reads)
	}
	if !bytes.Equal(misaligned, image[16*512:20*512]) {
		t.Fatalf("staged read differs from direct read of the same sectors")
	}

	// Misaligned transfers larger than one cluster fall back to the
	// primary transport.
	raw = blockdev.AlignedBuffer(clusterBytes + 512 + 32)
	misaligned = raw[1 : 1+clusterBytes+512]
	if dr := dio.Read(0, misaligned, 0, 9); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.reads != 2 || dma.reads != 2 {
		t.Fatalf("oversized misaligned: expected primary, got primary=%v dma=%v", primary.reads, dma.reads)
	}
	if !bytes.Equal(misaligned, image[:clusterBytes+512]) {
		t.Fatalf("oversized misaligned read returned wrong data")
	}

	// Writes route only through the primary transport.
	buf = blockdev.AlignedBuffer(2 * 512)
	if dr := dio.Write(0, buf, 32, 2); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.writes != 1 || dma.writes != 0 {
		t.Fatalf("write: expected primary only, got primary=%v dma=%v", primary.writes, dma.writes)
	}

	// The engine's boot sector read during mount is one extra PIO
	// transfer of one sector.
	stats := adapter.Mounts()[0].Stats
	if stats.DMATransfers != 1 || stats.StagedTransfers != 1 || stats.PIOTransfers != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SectorsRead != 1+1+4+4+9 || stats.SectorsWritten != 2 {
		t.Fatalf("unexpected sector counters: %+v", stats)
	}
}

func TestDiskIOErrors(t *testing.T) {
	adapter, _, _, _ := newRoutingRig(t)
	defer adapter.Shutdown()
	dio := &diskIO{adapter: adapter}

	// Reading past the device maps the transport's too-large error to a
	// parameter error.
	buf := blockdev.AlignedBuffer(512)
	if dr := dio.Read(0, buf, 1000, 1); dr != engine.DiskParError {
		t.Fatalf("expected DiskParError, got %v", dr)
	}
	if dr := dio.Write(0, buf, 1000, 1); dr != engine.DiskParError {
		t.Fatalf("expected DiskParError, got %v", dr)
	}

	// Unknown drives are not ready.
	if dr := dio.Read(3, buf, 0, 1); dr != engine.DiskNotReady {
		t.Fatalf("expected DiskNotReady, got %v", dr)
	}
	if status := dio.Status(3); status&engine.StatusNoDisk == 0 {
		t.Fatalf("expected no-disk status, got %v", status)
	}
}

func TestDiskIOIoctl(t *testing.T) {
	adapter, _, _, _ := newRoutingRig(t)
	defer adapter.Shutdown()
	dio := &diskIO{adapter: adapter}

	var sectors int64
	if dr := dio.Ioctl(0, engine.GetSectorCount, &sectors); dr != engine.DiskOK || sectors != 64 {
		t.Fatalf("sector count: expected (DiskOK, 64), got (%v, %v)", dr, sectors)
	}
	var size int
	if dr := dio.Ioctl(0, engine.GetSectorSize, &size); dr != engine.DiskOK || size != 512 {
		t.Fatalf("sector size: expected (DiskOK, 512), got (%v, %v)", dr, size)
	}
	if dr := dio.Ioctl(0, engine.CtrlSync, nil); dr != engine.DiskOK {
		t.Fatalf("sync: expected DiskOK, got %v", dr)
	}
	if dr := dio.Ioctl(0, engine.CtrlTrim, nil); dr != engine.DiskOK {
		t.Fatalf("trim: expected DiskOK, got %v", dr)
	}
	if dr := dio.Ioctl(0, engine.IoctlCmd(0xEE), nil); dr != engine.DiskParError {
		t.Fatalf("unknown command: expected DiskParError, got %v", dr)
	}
	// Wrong data shape is a parameter error.
	if dr := dio.Ioctl(0, engine.GetSectorCount, &size); dr != engine.DiskParError {
		t.Fatalf("bad data: expected DiskParError, got %v", dr)
	}
}

func TestDMAInitFailureIsNonFatal(t *testing.T) {
	image := testImage(64)
	primary := &countingDevice{Device: blockdev.NewMemDeviceBytes(image)}
	broken := blockdev.NewMemDevice(64)
	broken.InitErr = errors.New("dma bringup failed")
	dma := &countingDevice{Device: broken}

	adapter, _ := newTestAdapter(t, &engine.FakeEngine{})
	defer adapter.Shutdown()
	if err := adapter.Mount("/sd", primary, dma, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	primary.reads = 0

	// With DMA disabled even aligned multi-sector reads use the primary
	// transport.
	dio := &diskIO{adapter: adapter}
	buf := blockdev.AlignedBuffer(4 * 512)
	if dr := dio.Read(0, buf, 0, 4); dr != engine.DiskOK {
		t.Fatalf("expected DiskOK, got %v", dr)
	}
	if primary.reads != 1 || dma.reads != 0 {
		t.Fatalf("expected primary only, got primary=%v dma=%v", primary.reads, dma.reads)
	}
}

func TestPrimaryInitFailureFailsMount(t *testing.T) {
	primary := blockdev.NewMemDevice(64)
	primary.InitErr = errors.New("no medium")

	adapter, _ := newTestAdapter(t, &engine.FakeEngine{})
	defer adapter.Shutdown()
	err := adapter.Mount("/sd", primary, nil, 0)
	if !errors.Is(err, unix.ENODEV) {
		t.Fatalf("expected: %v, got: %v", unix.ENODEV, err)
	}
	if adapter.IsMounted("/sd") {
		t.Fatalf("failed mount left a mount record")
	}
}

func TestHandlerIoctl(t *testing.T) {
	adapter, registry := newTestAdapter(t, &engine.FakeEngine{})
	defer adapter.Shutdown()

	image := testImage(64)
	if err := adapter.Mount("/sd", blockdev.NewMemDeviceBytes(image), nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handler := handlerFor(t, registry, "/sd")

	fd, err := handler.Open("/file", vfs.WriteOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := handler.Write(fd, []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boot := make([]byte, 512)
	if err := handler.Ioctl(fd, vfs.IoctlGetBootSector, boot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(boot, image[:512]) {
		t.Fatalf("boot sector contents differ from the device")
	}

	var lba int64
	if err := handler.Ioctl(fd, vfs.IoctlGetFirstClusterLBA, &lba); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lba <= 0 {
		t.Fatalf("expected positive first cluster LBA, got %v", lba)
	}

	// Unknown commands forward to the disk shim.
	var sectors int64
	if err := handler.Ioctl(fd, vfs.IoctlCmd(engine.GetSectorCount), &sectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sectors != 64 {
		t.Fatalf("expected 64 sectors, got %v", sectors)
	}
}

func TestHandlerIoctlDirectoryHandle(t *testing.T) {
	adapter, registry := newTestAdapter(t, &engine.FakeEngine{})
	defer adapter.Shutdown()

	image := testImage(64)
	if err := adapter.Mount("/sd", blockdev.NewMemDeviceBytes(image), nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handler := handlerFor(t, registry, "/sd")

	fd, err := handler.Open("/", vfs.ReadOnly|vfs.Directory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Volume-level commands work on any open handle.
	boot := make([]byte, 512)
	if err := handler.Ioctl(fd, vfs.IoctlGetBootSector, boot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(boot, image[:512]) {
		t.Fatalf("boot sector contents differ from the device")
	}
	var sectors int64
	if err := handler.Ioctl(fd, vfs.IoctlCmd(engine.GetSectorCount), &sectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sectors != 64 {
		t.Fatalf("expected 64 sectors, got %v", sectors)
	}

	// Cluster commands still require a file handle.
	var lba int64
	err = handler.Ioctl(fd, vfs.IoctlGetFirstClusterLBA, &lba)
	if !errors.Is(err, engine.ResInvalidObject) {
		t.Fatalf("expected %v, got %v", engine.ResInvalidObject, err)
	}
	var tbl []uint32
	err = handler.Ioctl(fd, vfs.IoctlGetLinkMap, &tbl)
	if !errors.Is(err, engine.ResInvalidObject) {
		t.Fatalf("expected %v, got %v", engine.ResInvalidObject, err)
	}
}
