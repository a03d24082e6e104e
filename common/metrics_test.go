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

package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNoopMetricHandleDoesNotPanic(t *testing.T) {
	h := NewNoopMetricHandle()
	ctx := context.Background()
	attrs := []MetricAttr{{Key: FSOpKey, Value: OpStoreVector}}

	assert.NotPanics(t, func() {
		h.OpsCount(ctx, 1, attrs)
		h.OpsLatency(ctx, 1.5, attrs)
		h.OpsErrorCount(ctx, 1, attrs)
		h.BlockCacheAccessCount(ctx, 1, attrs)
		h.JournalCommitLatency(ctx, 2.0)
		h.AllocatorFragmentation(ctx, 42)
		h.HNSWSearchLatency(ctx, 3.0, attrs)
		h.StackHighWaterMark(ctx, 6000, attrs)
		h.CoordinatorOutcomeCount(ctx, 1, attrs)
	})
}

func TestMockMetricHandleRecordsCalls(t *testing.T) {
	m := &MockMetricHandle{}
	ctx := context.Background()
	m.On("OpsCount", ctx, int64(1), mock.Anything).Return()

	m.OpsCount(ctx, 1, []MetricAttr{{Key: FSOpKey, Value: OpGetVector}})

	m.AssertExpectations(t)
}
