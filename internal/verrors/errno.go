// Copyright 2025 VexFS Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verrors

import "golang.org/x/sys/unix"

// errnoTable is the Kind -> errno mapping named in spec §6/§7. A handful of
// Kinds are context-sensitive at the real POSIX boundary (PermissionDenied
// is EPERM or EACCES depending on whether the caller owns the resource);
// this table carries the default, and internal/vfsshim returns it
// unchanged, so PermissionDenied always reaches the caller as EACCES.
var errnoTable = map[Kind]unix.Errno{
	KindInvalidArgument:  unix.EINVAL,
	KindNotFound:         unix.ENOENT,
	KindAlreadyExists:    unix.EEXIST,
	KindPermissionDenied: unix.EACCES,
	KindOutOfSpace:       unix.ENOSPC,
	KindLockConflict:     unix.EDEADLK,
	KindCorruptedData:    unix.EIO,
	KindIO:               unix.EIO,
	KindTimeout:          unix.ETIMEDOUT,
	KindStackOverflow:    unix.EIO,
	KindJournalFull:      unix.ENOSPC,
	KindRecoveryFailed:   unix.EIO,
	KindConfiguration:    unix.EINVAL,
	KindInternal:         unix.EIO,
}

// Additional, more specific errnos named in spec §6 that do not have a
// dedicated Kind of their own. No package returns them: Errno maps only
// Kinds, so a not-a-directory or directory-not-empty failure (returned
// as KindInvalidArgument) reaches the VFS boundary as EINVAL.
const (
	ErrnoNotADirectory    = unix.ENOTDIR
	ErrnoIsDirectory      = unix.EISDIR
	ErrnoDirectoryNotEmpty = unix.ENOTEMPTY
	ErrnoReadOnly         = unix.EROFS
	ErrnoOutOfMemory      = unix.ENOMEM
	ErrnoPermissionOwner  = unix.EPERM
)

// Errno maps err to the POSIX errno the VFS boundary should return. Errors
// that are not a *VexfsError map to EIO, matching the "panics become
// Internal -> EIO" policy.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if errno, ok := errnoTable[KindOf(err)]; ok {
		return errno
	}
	return unix.EIO
}
