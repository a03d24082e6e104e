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

// Package opctx defines the OperationContext every externally initiated
// mutation or read enters through: user identity, working-directory inode,
// an optional active transaction handle, cancellation/deadline (via the
// standard context.Context the rest of the stack already expects), a
// priority hint, resource limits, and a telemetry sink. It is created once
// per request at the vfsshim boundary and passed by reference down the
// call stack; nothing below that boundary is allowed to retain it past the
// request's lifetime.
package opctx

import (
	"context"
	"time"

	"github.com/vexfs/vexfs/common"
)

// Priority hints the lock manager and coordinator's scheduling decisions
// when multiple operations contend for the same resource.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityBackground
	PriorityInteractive
)

// ResourceLimits caps the work a single operation may perform, so a
// pathological request (e.g. an oversized vector search) can't starve
// concurrent operations.
type ResourceLimits struct {
	MaxLockWait    time.Duration
	MaxStackBytes  int
	MaxResultCount int
}

// User identifies the caller for permission checks.
type User struct {
	UID uint32
	GID uint32
}

// OperationContext is created per externally initiated operation at the
// vfsshim boundary and passed by reference down every call it triggers.
type OperationContext struct {
	context.Context

	User      User
	CwdInode  uint64
	TxnHandle string // optional; empty means no active transaction

	Priority Priority
	Limits   ResourceLimits

	Metrics common.MetricHandle

	opID string
}

// New creates an OperationContext derived from parent, with the given
// deadline applied if non-zero. The returned cancel function must be
// called once the operation completes, exactly like a plain
// context.WithCancel/WithDeadline.
func New(parent context.Context, opID string, user User, cwdInode uint64, deadline time.Time, limits ResourceLimits, metrics common.MetricHandle) (*OperationContext, context.CancelFunc) {
	ctx := parent
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		ctx, cancel = context.WithDeadline(ctx, deadline)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	return &OperationContext{
		Context:  ctx,
		User:     user,
		CwdInode: cwdInode,
		Priority: PriorityNormal,
		Limits:   limits,
		Metrics:  metrics,
		opID:     opID,
	}, cancel
}

// OpID returns the operation's unique id, used to annotate verrors and
// correlate log lines across the lock manager, journal, and coordinator.
func (c *OperationContext) OpID() string { return c.opID }

// WithTxnHandle returns a copy of c bound to the given transaction handle,
// for use once the coordinator has begun a unified transaction on behalf
// of this operation.
func (c *OperationContext) WithTxnHandle(handle string) *OperationContext {
	clone := *c
	clone.TxnHandle = handle
	return &clone
}

// Cancelled reports whether the operation's context has been cancelled or
// its deadline exceeded; call sites that loop (lock waits, journal
// replay) should check this at each safe point.
func (c *OperationContext) Cancelled() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
