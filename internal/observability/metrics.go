package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks exactly the runtime
// counters the RPC surface, the tool dispatcher, and the sandbox lease
// manager expose:
//   - RPC calls by procedure and outcome
//   - Tool executions by tool name and outcome
//   - Active sandbox leases
//   - Agent loop iterations
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.RPCCallDuration("thread.stream").Observe(time.Since(start).Seconds())
type Metrics struct {
	// RPCCallCounter counts RPC calls by procedure and outcome.
	// Labels: procedure, outcome (ok|error)
	RPCCallCounter *prometheus.CounterVec

	// RPCCallDurationVec measures RPC handler latency in seconds.
	// Labels: procedure
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 30s
	RPCCallDurationVec *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations by tool name and outcome.
	// Labels: tool_name, outcome (ok|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ActiveSandboxLeases is a gauge tracking sandboxes with a live KV
	// heartbeat lease (§4.2).
	ActiveSandboxLeases prometheus.Gauge

	// LoopIterations counts agent loop steps by finish reason (§4.5).
	// Labels: finish_reason
	LoopIterations *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		RPCCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentstart_rpc_calls_total",
				Help: "Total number of RPC calls by procedure and outcome",
			},
			[]string{"procedure", "outcome"},
		),

		RPCCallDurationVec: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentstart_rpc_call_duration_seconds",
				Help:    "Duration of RPC calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"procedure"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentstart_tool_executions_total",
				Help: "Total number of tool executions by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentstart_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ActiveSandboxLeases: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentstart_active_sandbox_leases",
				Help: "Current number of sandboxes with a live lease",
			},
		),

		LoopIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentstart_loop_iterations_total",
				Help: "Total number of agent loop steps by finish reason",
			},
			[]string{"finish_reason"},
		),
	}
}

// RecordRPCCall records the outcome and latency of one RPC handler
// invocation.
//
// Example:
//
//	start := time.Now()
//	// ... handle request ...
//	metrics.RecordRPCCall("thread.stream", "ok", time.Since(start).Seconds())
func (m *Metrics) RecordRPCCall(procedure, outcome string, durationSeconds float64) {
	m.RPCCallCounter.WithLabelValues(procedure, outcome).Inc()
	m.RPCCallDurationVec.WithLabelValues(procedure).Observe(durationSeconds)
}

// RecordToolExecution records the outcome and latency of one tool call
// dispatched by the agent loop.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("shell.bash", "ok", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, outcome string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, outcome).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// SandboxLeaseAcquired increments the active sandbox lease gauge. Callers
// invoke this once per successful Adapter.ConnectOrCreate.
func (m *Metrics) SandboxLeaseAcquired() {
	m.ActiveSandboxLeases.Inc()
}

// SandboxLeaseReleased decrements the active sandbox lease gauge. Callers
// invoke this once per Adapter.Stop or Adapter.Dispose.
func (m *Metrics) SandboxLeaseReleased() {
	m.ActiveSandboxLeases.Dec()
}

// RecordLoopIteration records one completed agent loop step.
//
// Example:
//
//	metrics.RecordLoopIteration(string(agent.FinishToolCalls))
func (m *Metrics) RecordLoopIteration(finishReason string) {
	m.LoopIterations.WithLabelValues(finishReason).Inc()
}
