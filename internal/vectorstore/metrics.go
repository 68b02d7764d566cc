package vectorstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/vectorstore"

var (
	// OperationsTotal counts store operations.
	// Labels: backend (chromem, qdrant), op, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"backend", "op", "result"},
	)

	// OperationDuration tracks store operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// operation instruments one store call with a span and Prometheus metrics.
type operation struct {
	backend string
	name    string
	start   time.Time
	span    trace.Span
}

func startOperation(ctx context.Context, backend, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "vectorstore."+backend+"."+name)
	span.SetAttributes(attrs...)
	return ctx, &operation{backend: backend, name: name, start: time.Now(), span: span}
}

// end records the outcome and returns err unchanged.
func (o *operation) end(err error) error {
	result := "success"
	if err != nil {
		result = "error"
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	} else {
		o.span.SetStatus(codes.Ok, "")
	}
	o.span.End()

	OperationsTotal.WithLabelValues(o.backend, o.name, result).Inc()
	OperationDuration.WithLabelValues(o.backend, o.name).Observe(time.Since(o.start).Seconds())
	return err
}
