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

package fserr

import (
	"errors"
	"testing"

	"github.com/openembed/fatmount/pkg/engine"
	"golang.org/x/sys/unix"
)

func TestResultMapping(t *testing.T) {
	testCases := []struct {
		result engine.Result
		errno  unix.Errno
	}{
		{engine.ResDiskErr, unix.EIO},
		{engine.ResIntErr, unix.EFAULT},
		{engine.ResNotReady, unix.ENODEV},
		{engine.ResNoFile, unix.ENOENT},
		{engine.ResNoPath, unix.ENOENT},
		{engine.ResInvalidName, unix.EINVAL},
		{engine.ResDenied, unix.ENOSPC},
		{engine.ResExist, unix.EACCES},
		{engine.ResInvalidObject, unix.EBADF},
		{engine.ResWriteProtected, unix.EROFS},
		{engine.ResInvalidDrive, unix.ENXIO},
		{engine.ResNotEnabled, unix.EIDRM},
		{engine.ResNoFilesystem, unix.EIO},
		{engine.ResMkfsAborted, unix.EINVAL},
		{engine.ResTimeout, unix.ETIME},
		{engine.ResLocked, unix.EAGAIN},
		{engine.ResNotEnoughCore, unix.ENOMEM},
		{engine.ResTooManyOpenFiles, unix.EMFILE},
		{engine.ResInvalidParameter, unix.EINVAL},
	}

	for i, testCase := range testCases {
		if errno := Errno(testCase.result); errno != testCase.errno {
			t.Fatalf("case %v: %v: expected: %v, got: %v", i+1, testCase.result, testCase.errno, errno)
		}
		err := New("op", testCase.result)
		if !errors.Is(err, testCase.errno) {
			t.Fatalf("case %v: %v does not match errno %v", i+1, err, testCase.errno)
		}
		if !errors.Is(err, testCase.result) {
			t.Fatalf("case %v: %v does not match result %v", i+1, err, testCase.result)
		}
	}
}

func TestOKIsNil(t *testing.T) {
	if err := New("op", engine.ResOK); err != nil {
		t.Fatalf("expected nil error for ResOK, got %v", err)
	}
	if Errno(engine.ResOK) != 0 {
		t.Fatalf("expected zero errno for ResOK")
	}
}

func TestSentinels(t *testing.T) {
	testCases := []struct {
		err   error
		errno unix.Errno
	}{
		{ErrNotMounted, unix.ENXIO},
		{ErrBadDescriptor, unix.ENFILE},
		{ErrTableFull, unix.ENFILE},
		{ErrMountTableFull, unix.ENOSPC},
		{ErrNoEntry, unix.ENOENT},
	}
	for i, testCase := range testCases {
		if !errors.Is(testCase.err, testCase.errno) {
			t.Fatalf("case %v: %v does not match errno %v", i+1, testCase.err, testCase.errno)
		}
	}
}
