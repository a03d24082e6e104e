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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys used across metric emissions. Kept low-cardinality: the
// kind of operation, not its arguments.
const (
	FSOpKey           = "fs_op"
	FSErrCategoryKey  = "fs_error_category"
	CacheHitKey       = "cache_hit"
	CoordOutcomeKey   = "coordinator_outcome"
	CompressionKind   = "compression_kind"
	DistanceMetricKey = "distance_metric"
)

// MetricAttr is a single low-cardinality key/value pair attached to a
// metric emission.
type MetricAttr struct {
	Key, Value string
}

func (a *MetricAttr) String() string {
	return fmt.Sprintf("%s=%s", a.Key, a.Value)
}

func toAttrSet(attrs []MetricAttr) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		kvs = append(kvs, attribute.String(a.Key, a.Value))
	}
	return attribute.NewSet(kvs...)
}

// latencyBuckets mirrors the teacher's explicit-bucket histogram shape,
// in milliseconds.
var latencyBuckets = metric.WithExplicitBucketBoundaries(
	0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192,
)

// MetricHandle is the single metrics surface every core subsystem reports
// through. It is intentionally small and named by concern rather than by
// one-counter-per-method, matching the gauge/counter/histogram mix of a
// production otel integration.
type MetricHandle interface {
	// OpsCount increments the count of completed VFS/vector operations.
	OpsCount(ctx context.Context, inc int64, attrs []MetricAttr)
	// OpsLatency records operation latency in milliseconds.
	OpsLatency(ctx context.Context, ms float64, attrs []MetricAttr)
	// OpsErrorCount increments the count of failed operations, tagged by
	// FSErrCategoryKey.
	OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr)

	// BlockCacheAccessCount increments cache hits/misses, tagged by CacheHitKey.
	BlockCacheAccessCount(ctx context.Context, inc int64, attrs []MetricAttr)

	// JournalCommitLatency records commit-to-durable latency in milliseconds.
	JournalCommitLatency(ctx context.Context, ms float64)

	// AllocatorFragmentation records the 0-100 fragmentation score.
	AllocatorFragmentation(ctx context.Context, score int64)

	// HNSWSearchLatency records a search's end-to-end latency in milliseconds.
	HNSWSearchLatency(ctx context.Context, ms float64, attrs []MetricAttr)

	// StackHighWaterMark records the peak estimated stack usage, in bytes,
	// observed for one operation.
	StackHighWaterMark(ctx context.Context, bytes int64, attrs []MetricAttr)

	// CoordinatorOutcomeCount increments 2PC outcomes, tagged by CoordOutcomeKey.
	CoordinatorOutcomeCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

type otelMetricHandle struct {
	opsCounter      metric.Int64Counter
	opsLatency      metric.Float64Histogram
	opsErrCounter   metric.Int64Counter
	cacheCounter    metric.Int64Counter
	journalLatency  metric.Float64Histogram
	allocFragGauge  metric.Int64Gauge
	hnswLatency     metric.Float64Histogram
	stackHighWater  metric.Int64Histogram
	coordOutcomeCtr metric.Int64Counter
}

// NewOTelMetricHandle builds a MetricHandle backed by the global otel
// MeterProvider. Callers install an exporter (e.g.
// go.opentelemetry.io/otel/exporters/prometheus) on that provider before
// calling this; absent an exporter the instruments are still safe to use,
// they just report to nobody.
func NewOTelMetricHandle() (MetricHandle, error) {
	meter := otel.Meter("vexfs")

	opsCounter, err := meter.Int64Counter("vexfs.ops.count")
	if err != nil {
		return nil, err
	}
	opsLatency, err := meter.Float64Histogram("vexfs.ops.latency_ms", latencyBuckets)
	if err != nil {
		return nil, err
	}
	opsErrCounter, err := meter.Int64Counter("vexfs.ops.error_count")
	if err != nil {
		return nil, err
	}
	cacheCounter, err := meter.Int64Counter("vexfs.block_cache.access_count")
	if err != nil {
		return nil, err
	}
	journalLatency, err := meter.Float64Histogram("vexfs.journal.commit_latency_ms", latencyBuckets)
	if err != nil {
		return nil, err
	}
	allocFragGauge, err := meter.Int64Gauge("vexfs.allocator.fragmentation_score")
	if err != nil {
		return nil, err
	}
	hnswLatency, err := meter.Float64Histogram("vexfs.hnsw.search_latency_ms", latencyBuckets)
	if err != nil {
		return nil, err
	}
	stackHighWater, err := meter.Int64Histogram("vexfs.stack.high_water_bytes")
	if err != nil {
		return nil, err
	}
	coordOutcomeCtr, err := meter.Int64Counter("vexfs.coordinator.outcome_count")
	if err != nil {
		return nil, err
	}

	return &otelMetricHandle{
		opsCounter:      opsCounter,
		opsLatency:      opsLatency,
		opsErrCounter:   opsErrCounter,
		cacheCounter:    cacheCounter,
		journalLatency:  journalLatency,
		allocFragGauge:  allocFragGauge,
		hnswLatency:     hnswLatency,
		stackHighWater:  stackHighWater,
		coordOutcomeCtr: coordOutcomeCtr,
	}, nil
}

func (m *otelMetricHandle) OpsCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.opsCounter.Add(ctx, inc, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) OpsLatency(ctx context.Context, ms float64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.opsLatency.Record(ctx, ms, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.opsErrCounter.Add(ctx, inc, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) BlockCacheAccessCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.cacheCounter.Add(ctx, inc, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) JournalCommitLatency(ctx context.Context, ms float64) {
	m.journalLatency.Record(ctx, ms)
}

func (m *otelMetricHandle) AllocatorFragmentation(ctx context.Context, score int64) {
	m.allocFragGauge.Record(ctx, score)
}

func (m *otelMetricHandle) HNSWSearchLatency(ctx context.Context, ms float64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.hnswLatency.Record(ctx, ms, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) StackHighWaterMark(ctx context.Context, bytes int64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.stackHighWater.Record(ctx, bytes, metric.WithAttributeSet(set))
}

func (m *otelMetricHandle) CoordinatorOutcomeCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	set := toAttrSet(attrs)
	m.coordOutcomeCtr.Add(ctx, inc, metric.WithAttributeSet(set))
}

// noopMetricHandle discards everything; used where a caller has not wired
// an exporter (tests, or a mount whose OTel handle failed to initialize).
type noopMetricHandle struct{}

// NewNoopMetricHandle returns a MetricHandle that does nothing.
func NewNoopMetricHandle() MetricHandle { return noopMetricHandle{} }

func (noopMetricHandle) OpsCount(context.Context, int64, []MetricAttr)               {}
func (noopMetricHandle) OpsLatency(context.Context, float64, []MetricAttr)           {}
func (noopMetricHandle) OpsErrorCount(context.Context, int64, []MetricAttr)          {}
func (noopMetricHandle) BlockCacheAccessCount(context.Context, int64, []MetricAttr)  {}
func (noopMetricHandle) JournalCommitLatency(context.Context, float64)              {}
func (noopMetricHandle) AllocatorFragmentation(context.Context, int64)              {}
func (noopMetricHandle) HNSWSearchLatency(context.Context, float64, []MetricAttr)    {}
func (noopMetricHandle) StackHighWaterMark(context.Context, int64, []MetricAttr)     {}
func (noopMetricHandle) CoordinatorOutcomeCount(context.Context, int64, []MetricAttr) {}
