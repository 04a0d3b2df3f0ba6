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

// Package vfs defines the host-side file operation contract. One Handler is
// registered per mount path; the Registry dispatches host calls to it by
// longest path prefix. Descriptors are positive integers; zero is never a
// valid descriptor.
package vfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Open flags accepted by Handler.Open. Values follow the host convention.
const (
	AccessMode = unix.O_ACCMODE
	ReadOnly   = unix.O_RDONLY
	WriteOnly  = unix.O_WRONLY
	ReadWrite  = unix.O_RDWR
	Append     = unix.O_APPEND
	Truncate   = unix.O_TRUNC
	Directory  = unix.O_DIRECTORY
)

// Whence values for Handler.Seek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Fcntl commands. Only status-flag retrieval returns data; descriptor-flag
// get/set are accepted no-ops.
const (
	FcntlGetFD = unix.F_GETFD
	FcntlSetFD = unix.F_SETFD
	FcntlGetFL = unix.F_GETFL
)

// IoctlCmd is a handler-level ioctl command.
type IoctlCmd int

// Adapter-level ioctl commands are numbered above the disk control command
// range so unrecognized commands can be forwarded to the disk shim intact.
const (
	// IoctlGetBootSector copies the raw boot sector of the owning volume
	// into the provided []byte (at least one sector long).
	IoctlGetBootSector IoctlCmd = iota + 0x8000
	// IoctlGetFirstClusterLBA stores the absolute sector of the file's
	// first cluster into the provided *int64.
	IoctlGetFirstClusterLBA
	// IoctlGetLinkMap stores the file's fast-seek link map into the
	// provided *[]uint32, building it if needed.
	IoctlGetLinkMap
)

// DirSizeSentinel is reported as the size of directory entries.
const DirSizeSentinel = int64(-1)

// Dirent is one directory entry as reported by ReadDir.
type Dirent struct {
	Name    string
	Size    int64 // DirSizeSentinel for directories
	Dir     bool
	ModTime time.Time
}

// Stat is the metadata record synthesized by Stat and FStat.
type Stat struct {
	Name      string
	Size      int64 // DirSizeSentinel when unknown
	Dir       bool
	ReadOnly  bool
	BlockSize int64
	Blocks    int64
	ModTime   time.Time
}

// Handler serves all file operations below one mount path. Paths given to
// Handler methods are relative to the mount, always beginning with "/".
// Methods returning a descriptor or data return an error from the fserr
// package on failure.
type Handler interface {
	Open(path string, flags int) (int, error)
	Close(fd int) error
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	Seek(fd int, offset int64, whence int) (int64, error)
	Tell(fd int) (int64, error)
	Total(fd int) (int64, error)

	// ReadDir returns the next entry, or (nil, nil) at end of directory.
	ReadDir(fd int) (*Dirent, error)
	RewindDir(fd int) error

	Rename(oldPath, newPath string) error
	Unlink(path string) error
	Mkdir(path string) error
	Rmdir(path string) error

	Stat(path string) (*Stat, error)
	FStat(fd int) (*Stat, error)

	// MMap reads the whole file into one DMA-aligned buffer.
	MMap(fd int) ([]byte, error)
	// Complete forces data and metadata of the open file to media.
	Complete(fd int) error

	Fcntl(fd int, cmd int, arg int) (int, error)
	Ioctl(fd int, cmd IoctlCmd, data interface{}) error
}
