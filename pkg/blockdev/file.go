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
	"fmt"
	"os"
)

// FileDevice serves sectors from a disk image file.
type FileDevice struct {
	path       string
	file       *os.File
	blockShift uint
	numBlocks  int64
	readOnly   bool
}

// OpenFileDevice opens the disk image at path as a 512-byte sector device.
func OpenFileDevice(path string, readOnly bool) (*FileDevice, error) {
	const shift = 9
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size()&((1<<shift)-1) != 0 {
		return nil, fmt.Errorf("image %v is not a multiple of %v bytes", path, 1<<shift)
	}
	return &FileDevice{
		path:       path,
		blockShift: shift,
		numBlocks:  info.Size() >> shift,
		readOnly:   readOnly,
	}, nil
}

func (f *FileDevice) Init() error {
	if f.file != nil {
		return nil
	}
	flag := os.O_RDWR
	if f.readOnly {
		flag = os.O_RDONLY
	}
	file, err := os.OpenFile(f.path, flag, 0)
	if err != nil {
		return err
	}
	f.file = file
	return nil
}

func (f *FileDevice) Shutdown() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *FileDevice) check(start int64, count int, buf []byte) error {
	if f.file == nil {
		return ErrNotInitialized
	}
	if start < 0 || count < 0 || start+int64(count) > f.numBlocks {
		return ErrTooLarge
	}
	if int64(len(buf)) < int64(count)<<f.blockShift {
		return ErrTooLarge
	}
	return nil
}

func (f *FileDevice) ReadBlocks(start int64, count int, buf []byte) error {
	if err := f.check(start, count, buf); err != nil {
		return err
	}
	_, err := f.file.ReadAt(buf[:int64(count)<<f.blockShift], start<<f.blockShift)
	return err
}

func (f *FileDevice) WriteBlocks(start int64, count int, buf []byte) error {
	if err := f.check(start, count, buf); err != nil {
		return err
	}
	_, err := f.file.WriteAt(buf[:int64(count)<<f.blockShift], start<<f.blockShift)
	return err
}

func (f *FileDevice) CountBlocks() int64 {
	return f.numBlocks
}

func (f *FileDevice) Flush() error {
	if f.file == nil {
		return ErrNotInitialized
	}
	return f.file.Sync()
}

func (f *FileDevice) BlockShift() uint {
	return f.blockShift
}
