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

// MemDevice is a byte-slice backed Device for tests and synthetic images.
type MemDevice struct {
	buf        []byte
	blockShift uint
	initted    bool

	// InitErr, when set, makes Init fail. Used by mount failure tests.
	InitErr error
}

// NewMemDevice creates a memory device of numBlocks 512-byte sectors.
func NewMemDevice(numBlocks int64) *MemDevice {
	const shift = 9
	return &MemDevice{
		buf:        make([]byte, numBlocks<<shift),
		blockShift: shift,
	}
}

// NewMemDeviceBytes wraps an existing image. len(image) must be a multiple
// of 512.
func NewMemDeviceBytes(image []byte) *MemDevice {
	return &MemDevice{buf: image, blockShift: 9}
}

// Bytes exposes the backing image.
func (m *MemDevice) Bytes() []byte {
	return m.buf
}

func (m *MemDevice) Init() error {
	if m.InitErr != nil {
		return m.InitErr
	}
	m.initted = true
	return nil
}

func (m *MemDevice) Shutdown() error {
	m.initted = false
	return nil
}

func (m *MemDevice) check(start int64, count int, buf []byte) error {
	if !m.initted {
		return ErrNotInitialized
	}
	nbytes := int64(count) << m.blockShift
	if start < 0 || count < 0 || int64(len(buf)) < nbytes {
		return ErrTooLarge
	}
	if (start<<m.blockShift)+nbytes > int64(len(m.buf)) {
		return ErrTooLarge
	}
	return nil
}

func (m *MemDevice) ReadBlocks(start int64, count int, buf []byte) error {
	if err := m.check(start, count, buf); err != nil {
		return err
	}
	off := start << m.blockShift
	copy(buf, m.buf[off:off+int64(count)<<m.blockShift])
	return nil
}

func (m *MemDevice) WriteBlocks(start int64, count int, buf []byte) error {
	if err := m.check(start, count, buf); err != nil {
		return err
	}
	off := start << m.blockShift
	copy(m.buf[off:off+int64(count)<<m.blockShift], buf)
	return nil
}

func (m *MemDevice) CountBlocks() int64 {
	return int64(len(m.buf)) >> m.blockShift
}

func (m *MemDevice) Flush() error {
	if !m.initted {
		return ErrNotInitialized
	}
	return nil
}

func (m *MemDevice) BlockShift() uint {
	return m.blockShift
}
