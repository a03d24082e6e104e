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

	"github.com/stretchr/testify/mock"
)

// MockMetricHandle is a testify/mock MetricHandle, used by package tests
// that assert a specific metric was emitted rather than merely that the
// call did not panic.
type MockMetricHandle struct {
	mock.Mock
}

func (m *MockMetricHandle) OpsCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	m.Called(ctx, inc, attrs)
}

func (m *MockMetricHandle) OpsLatency(ctx context.Context, ms float64, attrs []MetricAttr) {
	m.Called(ctx, ms, attrs)
}

func (m *MockMetricHandle) OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	m.Called(ctx, inc, attrs)
}

func (m *MockMetricHandle) BlockCacheAccessCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	m.Called(ctx, inc, attrs)
}

func (m *MockMetricHandle) JournalCommitLatency(ctx context.Context, ms float64) {
	m.Called(ctx, ms)
}

func (m *MockMetricHandle) AllocatorFragmentation(ctx context.Context, score int64) {
	m.Called(ctx, score)
}

func (m *MockMetricHandle) HNSWSearchLatency(ctx context.Context, ms float64, attrs []MetricAttr) {
	m.Called(ctx, ms, attrs)
}

func (m *MockMetricHandle) StackHighWaterMark(ctx context.Context, bytes int64, attrs []MetricAttr) {
	m.Called(ctx, bytes, attrs)
}

func (m *MockMetricHandle) CoordinatorOutcomeCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	m.Called(ctx, inc, attrs)
}

var _ MetricHandle = (*MockMetricHandle)(nil)
