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
	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/blockdev"
	"github.com/openembed/fatmount/pkg/consts"
	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/fserr"
	"github.com/openembed/fatmount/pkg/vfs"
)

// mountHandler binds the host file operation contract to one mount record.
// One handler per mount; the record is its private context.
type mountHandler struct {
	adapter *Adapter
	rec     *mountRecord
}

// active verifies the handler's record is still in the mount table. Callers
// must hold the adapter lock.
func (m *mountHandler) active() error {
	if m.adapter.record(m.rec.drive) != m.rec {
		return fserr.ErrNotMounted
	}
	return nil
}

// file resolves fd to a file handle on this mount. Callers must hold the
// adapter lock.
func (m *mountHandler) file(fd int) (*fileHandle, error) {
	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return nil, err
	}
	if handle.rec != m.rec || handle.file == nil {
		return nil, fserr.New("resolve", engine.ResInvalidObject)
	}
	return handle, nil
}

// dir resolves fd to a directory handle on this mount. Callers must hold
// the adapter lock.
func (m *mountHandler) dir(fd int) (*fileHandle, error) {
	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return nil, err
	}
	if handle.rec != m.rec || handle.dir == nil {
		return nil, fserr.New("resolve", engine.ResInvalidObject)
	}
	return handle, nil
}

func accessMode(flags int) (engine.AccessMode, error) {
	var mode engine.AccessMode
	switch flags & vfs.AccessMode {
	case vfs.ReadOnly:
		mode = engine.AccessOpenExisting | engine.AccessRead
	case vfs.WriteOnly:
		mode = engine.AccessWrite
	case vfs.ReadWrite:
		mode = engine.AccessRead | engine.AccessWrite
	default:
		return 0, fserr.New("open", engine.ResInvalidParameter)
	}
	if mode&engine.AccessWrite != 0 {
		if flags&vfs.Truncate != 0 {
			mode |= engine.AccessCreateAlways
		} else {
			mode |= engine.AccessCreateNew
		}
	}
	return mode, nil
}

func (m *mountHandler) Open(path string, flags int) (int, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return 0, err
	}
	fd, handle, err := m.adapter.allocHandle(m.rec)
	if err != nil {
		klog.ErrorS(err, "unable to open", "path", m.rec.path+path)
		return 0, err
	}
	handle.flags = flags

	if flags&vfs.Directory != 0 {
		dir, res := m.rec.volume.OpenDir(path)
		if res != engine.ResOK {
			m.adapter.files[fd-1] = nil
			return 0, fserr.New("opendir", res)
		}
		handle.dir = dir
		return fd, nil
	}

	mode, err := accessMode(flags)
	if err != nil {
		m.adapter.files[fd-1] = nil
		return 0, err
	}
	file, res := m.rec.volume.OpenFile(path, mode)
	if res != engine.ResOK {
		m.adapter.files[fd-1] = nil
		return 0, fserr.New("open", res)
	}
	handle.file = file

	if mode&engine.AccessWrite != 0 {
		if res := file.Sync(); res != engine.ResOK {
			file.Close()
			m.adapter.files[fd-1] = nil
			return 0, fserr.New("open", res)
		}
	}

	// Append positions at one byte short of the end, matching the
	// behavior of the original adapter.
	if flags&vfs.Append != 0 && file.Size() > 0 {
		if res := file.Seek(file.Size() - 1); res != engine.ResOK {
			file.Close()
			m.adapter.files[fd-1] = nil
			return 0, fserr.New("open", res)
		}
	}
	return fd, nil
}

func (m *mountHandler) Close(fd int) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()
	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return err
	}
	if handle.rec != m.rec {
		return fserr.New("close", engine.ResInvalidObject)
	}
	return m.adapter.releaseHandle(fd)
}

func (m *mountHandler) Read(fd int, p []byte) (int, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return 0, err
	}
	handle.maybeBuildLinkMap()

	// A zero length read only arms the fast-seek map.
	if len(p) == 0 {
		return 0, nil
	}

	n, res := handle.file.Read(p)
	if res != engine.ResOK {
		return 0, fserr.New("read", res)
	}
	return n, nil
}

// Write delegates to the engine without forcing a sync; durability requires
// Complete or Close.
func (m *mountHandler) Write(fd int, p []byte) (int, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return 0, err
	}
	n, res := handle.file.Write(p)
	if res != engine.ResOK {
		return 0, fserr.New("write", res)
	}
	return n, nil
}

func (m *mountHandler) Seek(fd int, offset int64, whence int) (int64, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return 0, err
	}

	var off int64
	switch whence {
	case vfs.SeekSet:
		off = offset
	case vfs.SeekCur:
		off = handle.file.Tell() + offset
	case vfs.SeekEnd:
		off = handle.file.Size() + offset
	default:
		return 0, fserr.New("seek", engine.ResInvalidParameter)
	}

	if res := handle.file.Seek(off); res != engine.ResOK {
		return 0, fserr.New("seek", res)
	}
	return handle.file.Tell(), nil
}

func (m *mountHandler) Tell(fd int) (int64, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return 0, err
	}
	return handle.file.Tell(), nil
}

func (m *mountHandler) Total(fd int) (int64, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return 0, err
	}
	return handle.file.Size(), nil
}

func (m *mountHandler) ReadDir(fd int) (*vfs.Dirent, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.dir(fd)
	if err != nil {
		return nil, err
	}

	if res := handle.dir.Read(&handle.dirScratch); res != engine.ResOK {
		return nil, fserr.New("readdir", res)
	}
	if handle.dirScratch.Name == "" {
		return nil, nil // end of directory
	}

	dent := &vfs.Dirent{
		Name:    handle.dirScratch.Name,
		ModTime: engine.UnpackTime(uint32(handle.dirScratch.Date)<<16 | uint32(handle.dirScratch.Time)),
	}
	if handle.dirScratch.IsDir() {
		dent.Dir = true
		dent.Size = vfs.DirSizeSentinel
	} else {
		dent.Size = handle.dirScratch.Size
	}
	return dent, nil
}

func (m *mountHandler) RewindDir(fd int) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.dir(fd)
	if err != nil {
		return err
	}
	return fserr.New("rewinddir", handle.dir.Rewind())
}

func (m *mountHandler) Rename(oldPath, newPath string) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return err
	}
	return fserr.New("rename", m.rec.volume.Rename(oldPath, newPath))
}

func (m *mountHandler) Unlink(path string) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return err
	}
	return fserr.New("unlink", m.rec.volume.Remove(path))
}

func (m *mountHandler) Mkdir(path string) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return err
	}
	return fserr.New("mkdir", m.rec.volume.Mkdir(path))
}

func (m *mountHandler) Rmdir(path string) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return err
	}
	return fserr.New("rmdir", m.rec.volume.Remove(path))
}

func (m *mountHandler) Stat(path string) (*vfs.Stat, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	if err := m.active(); err != nil {
		return nil, err
	}

	// The filesystem root has no directory entry of its own.
	if path == "" || path == "/" {
		return &vfs.Stat{Name: "/", Dir: true, Size: vfs.DirSizeSentinel}, nil
	}

	info, res := m.rec.volume.Stat(path)
	if res != engine.ResOK {
		return nil, fserr.New("stat", res)
	}

	st := &vfs.Stat{
		Name:     info.Name,
		ReadOnly: info.Attr&engine.AttrReadOnly != 0,
		ModTime:  engine.UnpackTime(uint32(info.Date)<<16 | uint32(info.Time)),
	}
	if info.IsDir() {
		st.Dir = true
		st.Size = vfs.DirSizeSentinel
	} else {
		st.Size = info.Size
		st.BlockSize = int64(m.rec.sectorSize)
		st.Blocks = (info.Size + st.BlockSize - 1) / st.BlockSize
	}
	return st, nil
}

func (m *mountHandler) FStat(fd int) (*vfs.Stat, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return nil, err
	}
	if handle.rec != m.rec {
		return nil, fserr.New("fstat", engine.ResInvalidObject)
	}

	st := &vfs.Stat{BlockSize: int64(m.rec.sectorSize)}
	if handle.dir != nil {
		st.Dir = true
		st.Size = vfs.DirSizeSentinel
		return st, nil
	}
	st.Size = handle.file.Size()
	st.Blocks = (st.Size + st.BlockSize - 1) / st.BlockSize
	return st, nil
}

// MMap reads the whole file into one DMA-aligned buffer. A short read
// discards the buffer and reports an error.
func (m *mountHandler) MMap(fd int) ([]byte, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return nil, err
	}
	size := handle.file.Size()
	if size == 0 {
		return nil, fserr.New("mmap", engine.ResInvalidParameter)
	}

	handle.maybeBuildLinkMap()
	buf := blockdev.AlignedBuffer(int(size))
	n, res := handle.file.Read(buf)
	if res != engine.ResOK {
		return nil, fserr.New("mmap", res)
	}
	if int64(n) != size {
		return nil, fserr.New("mmap", engine.ResDiskErr)
	}
	return buf, nil
}

func (m *mountHandler) Complete(fd int) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.file(fd)
	if err != nil {
		return err
	}
	return fserr.New("sync", handle.file.Sync())
}

// Fcntl supports status flag retrieval; descriptor flag get/set are
// accepted no-ops.
func (m *mountHandler) Fcntl(fd int, cmd int, arg int) (int, error) {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return 0, err
	}
	if handle.rec != m.rec {
		return 0, fserr.New("fcntl", engine.ResInvalidObject)
	}

	switch cmd {
	case vfs.FcntlGetFL:
		return handle.flags, nil
	case vfs.FcntlGetFD, vfs.FcntlSetFD:
		return 0, nil
	default:
		return 0, fserr.New("fcntl", engine.ResInvalidParameter)
	}
}

// Ioctl serves the adapter command set; unrecognized commands forward to
// the disk shim. Any open handle on the mount reaches the volume-level
// commands; only the cluster commands need a file handle.
func (m *mountHandler) Ioctl(fd int, cmd vfs.IoctlCmd, data interface{}) error {
	m.adapter.mu.Lock()
	defer m.adapter.mu.Unlock()

	handle, err := m.adapter.resolveHandle(fd)
	if err != nil {
		return err
	}
	if handle.rec != m.rec {
		return fserr.New("ioctl", engine.ResInvalidObject)
	}
	dio := &diskIO{adapter: m.adapter}

	switch cmd {
	case vfs.IoctlGetBootSector:
		buf, ok := data.([]byte)
		if !ok || len(buf) < consts.SectorSize {
			return fserr.New("ioctl", engine.ResInvalidParameter)
		}
		return diskErr("ioctl", dio.Read(m.rec.drive, buf[:consts.SectorSize], 0, 1))

	case vfs.IoctlGetFirstClusterLBA:
		if handle.file == nil {
			return fserr.New("ioctl", engine.ResInvalidObject)
		}
		out, ok := data.(*int64)
		if !ok {
			return fserr.New("ioctl", engine.ResInvalidParameter)
		}
		lba := m.rec.volume.SectorOfCluster(handle.file.FirstCluster())
		if lba == 0 {
			return fserr.New("ioctl", engine.ResDiskErr)
		}
		*out = lba
		return nil

	case vfs.IoctlGetLinkMap:
		if handle.file == nil {
			return fserr.New("ioctl", engine.ResInvalidObject)
		}
		out, ok := data.(*[]uint32)
		if !ok {
			return fserr.New("ioctl", engine.ResInvalidParameter)
		}
		if handle.linkMap == nil {
			if res := handle.buildLinkMap(); res != engine.ResOK {
				return fserr.New("ioctl", res)
			}
		}
		*out = handle.linkMap
		return nil

	default:
		return diskErr("ioctl", dio.Ioctl(m.rec.drive, engine.IoctlCmd(cmd), data))
	}
}

// diskErr translates a disk result into an adapter error.
func diskErr(op string, dr engine.DiskResult) error {
	switch dr {
	case engine.DiskOK:
		return nil
	case engine.DiskParError:
		return fserr.New(op, engine.ResInvalidParameter)
	case engine.DiskNotReady:
		return fserr.New(op, engine.ResNotReady)
	case engine.DiskWriteProtected:
		return fserr.New(op, engine.ResWriteProtected)
	default:
		return fserr.New(op, engine.ResDiskErr)
	}
}
