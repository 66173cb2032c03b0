package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/assembler"
	"github.com/agentstart/agentstart-sub001/internal/config"
	"github.com/agentstart/agentstart-sub001/internal/kv"
	"github.com/agentstart/agentstart-sub001/internal/llm"
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/internal/observability"
	"github.com/agentstart/agentstart-sub001/internal/sandbox"
	"github.com/agentstart/agentstart-sub001/internal/tools"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// Coordinator is the Thread Stream Coordinator (§4.6): it owns the
// wiring between the Memory Adapter, the Message Assembler, the
// Sandbox Adapter, the Agent Loop, and the model registry, and exposes
// the public thread.stream entry point plus its supporting thread CRUD.
type Coordinator struct {
	Threads    *ThreadStore
	Assembler  *assembler.Assembler
	Memory     memory.Adapter
	Models     *llm.Registry
	Config     *config.Config
	Leases     kv.Store
	SandboxCfg *sandbox.DaytonaConfig
	Identity   tools.GitIdentity

	// Metrics and Tracer are optional; when set, Stream and connectSandbox
	// record the counters and spans SPEC_FULL.md's domain stack calls for.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// New builds a Coordinator from its dependencies.
func New(mem memory.Adapter, models *llm.Registry, cfg *config.Config, leases kv.Store, sandboxCfg *sandbox.DaytonaConfig, identity tools.GitIdentity) *Coordinator {
	return &Coordinator{
		Threads:    NewThreadStore(mem),
		Assembler:  assembler.New(mem),
		Memory:     mem,
		Models:     models,
		Config:     cfg,
		Leases:     leases,
		SandboxCfg: sandboxCfg,
		Identity:   identity,
	}
}

// sandboxTTL derives the lease TTL from config's autoStopDelay,
// clamped to the 1ms lower bound the lease manager requires (§5).
func (c *Coordinator) sandboxTTL() time.Duration {
	ttl := time.Duration(c.Config.AutoStopDelaySeconds) * time.Second
	if ttl <= time.Millisecond {
		ttl = 60 * time.Second
	}
	return ttl
}

// connectSandbox resolves (or provisions) the sandbox owned by thread,
// persisting the assigned sandbox id back onto the thread row the
// first time one is created (§4.6 step 2).
func (c *Coordinator) connectSandbox(ctx context.Context, thread runtypes.Thread) (*sandbox.Adapter, error) {
	adapter, err := sandbox.NewAdapter(c.SandboxCfg, c.Leases, c.sandboxTTL())
	if err != nil {
		return nil, fmt.Errorf("coordinator: build sandbox adapter: %w", err)
	}
	sandboxID, err := adapter.ConnectOrCreate(ctx, thread.SandboxID, c.SandboxCfg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: connect sandbox: %w", err)
	}
	if c.Metrics != nil {
		c.Metrics.SandboxLeaseAcquired()
	}
	if sandboxID != thread.SandboxID {
		if err := c.Threads.SetSandboxID(ctx, thread.ID, sandboxID); err != nil {
			return nil, err
		}
	}
	return adapter, nil
}

// ConnectSandbox resolves the sandbox owned by thread for callers
// outside Stream (e.g. the sandbox.list RPC) that need filesystem
// access without running the agent loop.
func (c *Coordinator) ConnectSandbox(ctx context.Context, thread runtypes.Thread) (agent.SandboxFacade, error) {
	return c.connectSandbox(ctx, thread)
}

func (c *Coordinator) resolveModel(requested string) string {
	if requested != "" {
		return requested
	}
	if c.Config.Models.Default != "" {
		return c.Config.Models.Default
	}
	return c.Config.Model
}

func (c *Coordinator) buildTools(identity tools.GitIdentity) map[string]agent.Tool {
	all := tools.Registry(identity)
	if len(c.Config.Tools) == 0 {
		return all
	}
	selected := make(map[string]agent.Tool, len(c.Config.Tools))
	for _, name := range c.Config.Tools {
		if t, ok := all[name]; ok {
			selected[name] = t
		}
	}
	return selected
}
