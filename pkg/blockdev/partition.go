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

// PartitionDevice exposes a sector window of an underlying device as a
// device of its own. The window start and length are fixed at construction;
// requests crossing the window edge fail with ErrTooLarge.
//
// The window borrows the medium rather than owning it: Shutdown releases
// only the window, so sibling windows over the same medium stay usable.
// Whoever created the underlying device shuts it down.
type PartitionDevice struct {
	dev        Device
	startBlock int64
	numBlocks  int64
}

// Partition wraps dev into a window of numBlocks sectors starting at
// startBlock.
func Partition(dev Device, startBlock, numBlocks int64) *PartitionDevice {
	return &PartitionDevice{dev: dev, startBlock: startBlock, numBlocks: numBlocks}
}

func (p *PartitionDevice) check(start int64, count int) error {
	if start < 0 || count < 0 || start+int64(count) > p.numBlocks {
		return ErrTooLarge
	}
	return nil
}

func (p *PartitionDevice) Init() error {
	return p.dev.Init()
}

// Shutdown retires the window without touching the underlying medium.
func (p *PartitionDevice) Shutdown() error {
	return nil
}

func (p *PartitionDevice) ReadBlocks(start int64, count int, buf []byte) error {
	if err := p.check(start, count); err != nil {
		return err
	}
	return p.dev.ReadBlocks(p.startBlock+start, count, buf)
}

func (p *PartitionDevice) WriteBlocks(start int64, count int, buf []byte) error {
	if err := p.check(start, count); err != nil {
		return err
	}
	return p.dev.WriteBlocks(p.startBlock+start, count, buf)
}

func (p *PartitionDevice) CountBlocks() int64 {
	return p.numBlocks
}

func (p *PartitionDevice) Flush() error {
	return p.dev.Flush()
}

func (p *PartitionDevice) BlockShift() uint {
	return p.dev.BlockShift()
}
