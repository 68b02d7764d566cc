// Package logging provides structured logging for docrag.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Stderr, stdout and OpenTelemetry outputs
//   - Context field injection (trace_id, run.id, collection, request.id)
//   - Secret redaction at the encoder
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.NewConfig("info", "console")
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "ingest finished", zap.Int("files", n))
//
// Library packages take a plain *zap.Logger; pass logger.Underlying() to them.
//
// CLI commands log to stderr by default so stdout stays reserved for command
// output and the MCP stdio protocol.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := ingest.New(cfg, deps, tl.Underlying())
//	tl.AssertLogged(t, zapcore.WarnLevel, "file skipped")
package logging
