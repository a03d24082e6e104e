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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestVexfsErrorAnnotations(t *testing.T) {
	base := New(KindNotFound, "vector not found")
	annotated := base.WithPath("/a/b").WithInode(42).WithOpID("op-1")

	assert.Equal(t, KindNotFound, annotated.Kind)
	assert.Contains(t, annotated.Error(), "/a/b")
	assert.Contains(t, annotated.Error(), "42")
	assert.Contains(t, annotated.Error(), "op-1")
	// WithPath/WithInode/WithOpID must not mutate the receiver.
	assert.Empty(t, base.Path)
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := fmt.Errorf("disk read failed")
	wrapped := Wrap(KindIO, cause, "block read")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindIO, KindOf(wrapped))
}

func TestKindOfNonVexfsErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindIO, KindTimeout, KindLockConflict, KindJournalFull}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "%s should be retryable", k)
	}

	notRetryable := []Kind{KindInvalidArgument, KindNotFound, KindAlreadyExists, KindPermissionDenied, KindCorruptedData, KindConfiguration, KindInternal}
	for _, k := range notRetryable {
		assert.False(t, k.Retryable(), "%s should not be retryable", k)
	}
}

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		kind  Kind
		errno unix.Errno
	}{
		{KindNotFound, unix.ENOENT},
		{KindAlreadyExists, unix.EEXIST},
		{KindOutOfSpace, unix.ENOSPC},
		{KindLockConflict, unix.EDEADLK},
		{KindCorruptedData, unix.EIO},
		{KindTimeout, unix.ETIMEDOUT},
		{KindStackOverflow, unix.EIO},
		{KindJournalFull, unix.ENOSPC},
	}

	for _, tc := range cases {
		err := New(tc.kind, "x")
		assert.Equal(t, tc.errno, Errno(err), "kind %s", tc.kind)
	}
}

func TestErrnoOfNilIsZero(t *testing.T) {
	assert.EqualValues(t, 0, Errno(nil))
}

func TestErrnoOfUntypedErrorIsEIO(t *testing.T) {
	assert.Equal(t, unix.EIO, Errno(errors.New("boom")))
}
