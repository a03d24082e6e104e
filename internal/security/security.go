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

// Package security is the POSIX + capability surface of spec.md
// §2/§4.8 (it has no ACL support), invoked by the directory/path and inode layers before any
// mutation or read. Grounded on the teacher's internal/perms package
// (translating a GCS bucket/object's effective uid/gid/mode into a
// FUSE-visible permission set), generalized into a standalone checker
// the core calls directly rather than one baked into attribute
// translation.
package security

import (
	"golang.org/x/sys/unix"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Access is the kind of access being requested, matching the low 3
// POSIX permission bits.
type Access uint32

const (
	AccessExecute Access = 1 << iota
	AccessWrite
	AccessRead
)

// Credentials identifies the requester for a permission check
// (spec.md §3 "Operation context" "user").
type Credentials struct {
	UID    uint32
	GID    uint32
	Groups []uint32
}

// Capability is a coarse, named escape hatch mirroring the handful of
// Linux capabilities the core cares about; it does not model the full
// capability set.
type Capability int

const (
	CapDacOverride Capability = iota // bypass all POSIX permission checks
	CapChown                         // change uid/gid of a file not owned
	CapFowner                        // operate on a file not owned regardless of mode
)

// Checker evaluates POSIX permission bits, with an optional capability
// bypass list, per requester. It has no ACL support: only the owner,
// group and other mode bits are consulted.
type Checker struct {
	// Capabilities, if set, grants the named bypasses to every request
	// regardless of Credentials — analogous to a process run with
	// CAP_DAC_OVERRIDE. Most callers leave this nil.
	Capabilities map[Capability]bool
}

// New constructs a Checker with no capability bypasses.
func New() *Checker { return &Checker{} }

func (c *Checker) has(cap Capability) bool {
	return c != nil && c.Capabilities != nil && c.Capabilities[cap]
}

// isMember reports whether gid is creds.GID or in creds.Groups.
func isMember(creds Credentials, gid uint32) bool {
	if creds.GID == gid {
		return true
	}
	for _, g := range creds.Groups {
		if g == gid {
			return true
		}
	}
	return false
}

// CheckAccess evaluates whether creds may access an object owned by
// (ownerUID, ownerGID) with the given POSIX mode, for the requested
// Access bits. uid 0 (or CapDacOverride) always succeeds.
func (c *Checker) CheckAccess(ownerUID, ownerGID, mode uint32, creds Credentials, want Access) error {
	if creds.UID == 0 || c.has(CapDacOverride) {
		return nil
	}

	var shift uint32
	switch {
	case creds.UID == ownerUID:
		shift = 6
	case isMember(creds, ownerGID):
		shift = 3
	default:
		shift = 0
	}

	granted := Access((mode >> shift) & 0o7)
	if granted&want != want {
		return verrors.New(verrors.KindPermissionDenied, "insufficient permission").WithInode(0)
	}
	return nil
}

// CheckOwnerOrCapability enforces the "only owner or a capable caller
// may change ownership/mode" rule used by setattr-style operations.
func (c *Checker) CheckOwnerOrCapability(ownerUID uint32, creds Credentials, cap Capability) error {
	if creds.UID == 0 || creds.UID == ownerUID || c.has(cap) {
		return nil
	}
	return verrors.New(verrors.KindPermissionDenied, "only the owner or a capable caller may perform this operation")
}

// Errno is a convenience re-export so callers at the VFS boundary do
// not need to also import golang.org/x/sys/unix for the common case.
func Errno(err error) unix.Errno { return verrors.Errno(err) }
