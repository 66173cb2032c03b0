// Package observability provides monitoring and debugging capabilities for
// the agent runtime through metrics, structured logging, and distributed
// tracing.
//
// # Overview
//
// The observability package implements three pillars:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Metrics
//
// Metrics are implemented using the Prometheus client library and track:
//   - RPC calls by procedure and outcome
//   - Tool executions by tool name and outcome
//   - Active sandbox leases
//   - Agent loop iterations by finish reason
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... handle RPC request ...
//	metrics.RecordRPCCall("thread.stream", "ok", time.Since(start).Seconds())
//
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("shell.bash", "ok", time.Since(start).Seconds())
//
//	metrics.SandboxLeaseAcquired()
//	defer metrics.SandboxLeaseReleased()
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddThreadID(ctx, threadID)
//
//	logger.Info(ctx, "dispatching tool",
//	    "tool_name", call.Name,
//	    "input_bytes", len(call.Input),
//	)
//
//	logger.Error(ctx, "model call failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track the three operations a
// thread turn is built from:
//   - RPC calls
//   - model calls
//   - tool executions
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentstartd",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceRPCCall(ctx, "thread.stream")
//	defer span.End()
//
//	ctx, modelSpan := tracer.TraceModelCall(ctx, "anthropic", "claude-3-opus")
//	defer modelSpan.End()
//
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "shell.bash")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//	ctx = observability.AddThreadID(ctx, "th-abc")
//
//	logger.Info(ctx, "handling turn") // Includes request_id, thread_id, etc.
//
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Testing
//
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests (no Endpoint configured)
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
