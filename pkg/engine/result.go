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

package engine

// Result is a FAT engine function return code.
type Result int

const (
	ResOK               Result = iota // succeeded
	ResDiskErr                        // a hard error occurred in the low level disk I/O layer
	ResIntErr                         // assertion failed
	ResNotReady                       // the physical drive cannot work
	ResNoFile                         // could not find the file
	ResNoPath                         // could not find the path
	ResInvalidName                    // the path name format is invalid
	ResDenied                         // access denied due to prohibited access or directory full
	ResExist                          // access denied due to prohibited access
	ResInvalidObject                  // the file/directory object is invalid
	ResWriteProtected                 // the physical drive is write protected
	ResInvalidDrive                   // the logical drive number is invalid
	ResNotEnabled                     // the volume has no work area
	ResNoFilesystem                   // there is no valid FAT volume
	ResMkfsAborted                    // volume formatting aborted
	ResTimeout                        // could not get a grant to access the volume within defined period
	ResLocked                         // the operation is rejected according to the file sharing policy
	ResNotEnoughCore                  // working buffer could not be allocated or is too small
	ResTooManyOpenFiles               // number of open objects reached the engine limit
	ResInvalidParameter               // given parameter is invalid
)

var resultNames = map[Result]string{
	ResOK:               "OK",
	ResDiskErr:          "DISK_ERR",
	ResIntErr:           "INT_ERR",
	ResNotReady:         "NOT_READY",
	ResNoFile:           "NO_FILE",
	ResNoPath:           "NO_PATH",
	ResInvalidName:      "INVALID_NAME",
	ResDenied:           "DENIED",
	ResExist:            "EXIST",
	ResInvalidObject:    "INVALID_OBJECT",
	ResWriteProtected:   "WRITE_PROTECTED",
	ResInvalidDrive:     "INVALID_DRIVE",
	ResNotEnabled:       "NOT_ENABLED",
	ResNoFilesystem:     "NO_FILESYSTEM",
	ResMkfsAborted:      "MKFS_ABORTED",
	ResTimeout:          "TIMEOUT",
	ResLocked:           "LOCKED",
	ResNotEnoughCore:    "NOT_ENOUGH_CORE",
	ResTooManyOpenFiles: "TOO_MANY_OPEN_FILES",
	ResInvalidParameter: "INVALID_PARAMETER",
}

func (r Result) String() string {
	if name, found := resultNames[r]; found {
		return name
	}
	return "UNKNOWN"
}

// Error makes Result usable as an error value. ResOK is still a non-nil
// error; callers must test the result code, not the error interface.
func (r Result) Error() string {
	return "fat engine: " + r.String()
}
