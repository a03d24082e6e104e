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

// Package verrors defines the single error taxonomy every core subsystem
// reports through: a closed set of Kinds, a structured envelope carrying
// path/inode/operation-id context, and the errno mapping consumed at the
// VFS-shim boundary.
package verrors

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy, not a type hierarchy: every VexfsError carries
// exactly one of these, and callers branch on Kind rather than on Go types.
type Kind int

const (
	// KindInternal covers anything that should never happen on a correct
	// call path, including recovered panics below the panic-count ceiling.
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindAlreadyExists
	KindPermissionDenied
	KindOutOfSpace
	KindLockConflict
	KindCorruptedData
	KindIO
	KindTimeout
	KindStackOverflow
	KindJournalFull
	KindRecoveryFailed
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindPermissionDenied:
		return "permission_denied"
	case KindOutOfSpace:
		return "out_of_space"
	case KindLockConflict:
		return "lock_conflict"
	case KindCorruptedData:
		return "corrupted_data"
	case KindIO:
		return "io"
	case KindTimeout:
		return "timeout"
	case KindStackOverflow:
		return "stack_overflow"
	case KindJournalFull:
		return "journal_full"
	case KindRecoveryFailed:
		return "recovery_failed"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Retryable reports whether operations failing with this Kind may be
// retried with exponential backoff, per the propagation policy: I/O,
// Timeout, Lock Conflict, and Journal Full are recoverable; everything
// else surfaces straight to the caller.
func (k Kind) Retryable() bool {
	switch k {
	case KindIO, KindTimeout, KindLockConflict, KindJournalFull:
		return true
	default:
		return false
	}
}

// VexfsError is the structured envelope every programmatic interface
// returns: {kind, message, optional path, optional inode, optional
// operation-id}.
type VexfsError struct {
	Kind Kind
	Msg  string

	Path    string // optional
	InodeID uint64 // optional, 0 means unset
	OpID    string // optional, the operation-id of the request that failed

	cause error
}

func (e *VexfsError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Path != "" {
		s += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.InodeID != 0 {
		s += fmt.Sprintf(" (inode=%d)", e.InodeID)
	}
	if e.OpID != "" {
		s += fmt.Sprintf(" (op=%s)", e.OpID)
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *VexfsError) Unwrap() error { return e.cause }

// New builds a VexfsError with no wrapped cause.
func New(kind Kind, msg string) *VexfsError {
	return &VexfsError{Kind: kind, Msg: msg}
}

// Wrap builds a VexfsError of the given kind wrapping an underlying cause,
// e.g. an *os.PathError from a block device read.
func Wrap(kind Kind, cause error, msg string) *VexfsError {
	return &VexfsError{Kind: kind, Msg: msg, cause: cause}
}

// WithPath returns a copy of e annotated with the given path.
func (e *VexfsError) WithPath(path string) *VexfsError {
	c := *e
	c.Path = path
	return &c
}

// WithInode returns a copy of e annotated with the given inode id.
func (e *VexfsError) WithInode(id uint64) *VexfsError {
	c := *e
	c.InodeID = id
	return &c
}

// WithOpID returns a copy of e annotated with the given operation id.
func (e *VexfsError) WithOpID(opID string) *VexfsError {
	c := *e
	c.OpID = opID
	return &c
}

// KindOf extracts the Kind of err if it is, or wraps, a *VexfsError;
// otherwise it returns KindInternal, matching the "panics become Internal
// errors" policy for anything that escaped typed handling.
func KindOf(err error) Kind {
	var ve *VexfsError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindInternal
}

// Is reports whether err is a *VexfsError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
