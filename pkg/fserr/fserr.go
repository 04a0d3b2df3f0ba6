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

// Package fserr translates FAT engine result codes into the host error
// number domain. Every failure surfaced by the mount layer carries both the
// engine result and the matching errno, so callers can test either with
// errors.Is.
package fserr

import (
	"github.com/openembed/fatmount/pkg/engine"
	"golang.org/x/sys/unix"
)

// Errors reported by the adapter itself, outside the engine result domain.
var (
	// ErrNotMounted reports an operation against a path with no active
	// mount record.
	ErrNotMounted = &Error{Op: "lookup", Errno: unix.ENXIO, msg: "no device mounted"}

	// ErrBadDescriptor reports a file descriptor outside the handle
	// table range or referring to a free slot.
	ErrBadDescriptor = &Error{Op: "resolve", Errno: unix.ENFILE, msg: "invalid file descriptor"}

	// ErrTableFull reports handle table exhaustion.
	ErrTableFull = &Error{Op: "open", Errno: unix.ENFILE, msg: "maximum number of open files exceeded"}

	// ErrMountTableFull reports mount table exhaustion.
	ErrMountTableFull = &Error{Op: "mount", Errno: unix.ENOSPC, msg: "maximum number of mounts exceeded"}

	// ErrNoEntry reports an unmount of a path that is not mounted.
	ErrNoEntry = &Error{Op: "unmount", Errno: unix.ENOENT, msg: "no such mount entry"}
)

// errnoByResult is the 1:1 engine-result to errno mapping.
var errnoByResult = map[engine.Result]unix.Errno{
	engine.ResDiskErr:          unix.EIO,
	engine.ResIntErr:           unix.EFAULT,
	engine.ResNotReady:         unix.ENODEV,
	engine.ResNoFile:           unix.ENOENT,
	engine.ResNoPath:           unix.ENOENT,
	engine.ResInvalidName:      unix.EINVAL,
	engine.ResDenied:           unix.ENOSPC,
	engine.ResExist:            unix.EACCES,
	engine.ResInvalidObject:    unix.EBADF,
	engine.ResWriteProtected:   unix.EROFS,
	engine.ResInvalidDrive:     unix.ENXIO,
	engine.ResNotEnabled:       unix.EIDRM,
	engine.ResNoFilesystem:     unix.EIO,
	engine.ResMkfsAborted:      unix.EINVAL,
	engine.ResTimeout:          unix.ETIME,
	engine.ResLocked:           unix.EAGAIN,
	engine.ResNotEnoughCore:    unix.ENOMEM,
	engine.ResTooManyOpenFiles: unix.EMFILE,
	engine.ResInvalidParameter: unix.EINVAL,
}

// Error couples an engine result with its host errno.
type Error struct {
	Op     string
	Result engine.Result
	Errno  unix.Errno
	msg    string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return "fatmount: " + e.Op + ": " + e.msg
	}
	return "fatmount: " + e.Op + ": " + e.Result.String() + " (" + e.Errno.Error() + ")"
}

// Unwrap exposes the errno so errors.Is(err, unix.ENOENT) matches.
func (e *Error) Unwrap() error {
	return e.Errno
}

// Is additionally matches the bare engine result.
func (e *Error) Is(target error) bool {
	if res, ok := target.(engine.Result); ok {
		return e.msg == "" && e.Result == res
	}
	return false
}

// Errno resolves an engine result to its host error number. Results without
// a documented mapping (including ResOK) resolve to zero.
func Errno(r engine.Result) unix.Errno {
	return errnoByResult[r]
}

// New translates an engine result into an adapter error. ResOK yields nil.
func New(op string, r engine.Result) error {
	if r == engine.ResOK {
		return nil
	}
	return &Error{Op: op, Result: r, Errno: errnoByResult[r]}
}
