// Package telemetry wires OpenTelemetry tracing and metrics for docrag.
//
// Instrumented packages call otel.Tracer and otel.Meter directly, so they
// work against the global no-op providers until New installs real ones:
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Export uses OTLP over gRPC (default) or http/protobuf. Telemetry failures
// never abort a command; the instance degrades and reports it via Health.
//
// Tests use TestTelemetry, which records spans and metrics in memory.
package telemetry
