package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

func TestMetrics_RecordInvocation(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &Metrics{meter: mp.Meter(instrumentationName), logger: zap.NewNop()}
	m.init()

	ctx := context.Background()
	m.RecordInvocation(ctx, "search_documents", 20*time.Millisecond, nil)
	m.RecordInvocation(ctx, "ask_documents", time.Second, errs.ErrGenerationService)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if sum, ok := mt.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[mt.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), totals["docrag.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), totals["docrag.mcp.tool.errors_total"])
}

func TestMetrics_ActiveRequests(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &Metrics{meter: mp.Meter(instrumentationName), logger: zap.NewNop()}
	m.init()

	ctx := context.Background()
	m.IncrementActive(ctx, "list_collections")
	m.IncrementActive(ctx, "list_collections")
	m.DecrementActive(ctx, "list_collections")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var active int64
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if mt.Name != "docrag.mcp.tool.active_requests" {
				continue
			}
			for _, dp := range mt.Data.(metricdata.Sum[int64]).DataPoints {
				active += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), active)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.Join(errs.ErrVectorStore, vectorstore.ErrCollectionNotFound), "not_found"},
		{fmt.Errorf("search: %w", errs.ErrInvalidConfiguration), "validation_error"},
		{context.DeadlineExceeded, "timeout"},
		{errs.ErrEmbeddingService, "embedding_error"},
		{errs.ErrGenerationService, "generation_error"},
		{errs.ErrVectorStore, "storage_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err))
	}
}
