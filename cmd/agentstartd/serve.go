package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/config"
	"github.com/agentstart/agentstart-sub001/internal/coordinator"
	"github.com/agentstart/agentstart-sub001/internal/kv"
	"github.com/agentstart/agentstart-sub001/internal/llm"
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/internal/observability"
	"github.com/agentstart/agentstart-sub001/internal/rpc"
	"github.com/agentstart/agentstart-sub001/internal/sandbox"
	"github.com/agentstart/agentstart-sub001/internal/tools"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentstartd RPC server",
		Long: `Start the agentstartd RPC server: thread CRUD, thread.stream SSE,
and config.get, backed by the memory/sandbox/model adapters chosen by
environment (DATABASE_URL, SQLITE_PATH, ANTHROPIC_API_KEY, OPENAI_API_KEY).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentstart.yaml", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&addr, "addr", ":8089", "RPC listen address")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string) error {
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentstartd",
		ServiceVersion: version,
		Environment:    os.Getenv("AGENTSTART_ENV"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mem, err := openMemoryAdapter(ctx)
	if err != nil {
		return fmt.Errorf("open memory adapter: %w", err)
	}

	leases, err := openLeaseStore()
	if err != nil {
		return fmt.Errorf("open lease store: %w", err)
	}

	models := buildModelRegistry()
	identity := tools.GitIdentity{Name: "agentstartd", Email: "agentstartd@localhost"}
	sandboxCfg := sandboxConfigFromEnv()

	co := coordinator.New(mem, models, cfg, leases, sandboxCfg, identity)
	co.Metrics = metrics
	co.Tracer = tracer

	server := &rpc.Server{
		Coordinator: co,
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
		Addr:        addr,
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info(ctx, "shutting down")
	return server.Stop(context.Background())
}

func openMemoryAdapter(ctx context.Context) (memory.Adapter, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return memory.NewInMemoryAdapter(), nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	adapter := memory.NewPostgresAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

func openLeaseStore() (kv.Store, error) {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		return kv.NewMemoryStore(), nil
	}
	return kv.OpenSQLiteStore(path)
}

func buildModelRegistry() *llm.Registry {
	providers := map[string]agent.LLMProvider{}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if p, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: key}); err == nil {
			providers["anthropic"] = p
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: key}); err == nil {
			providers["openai"] = p
		}
	}
	return llm.NewRegistry(providers)
}

func sandboxConfigFromEnv() *sandbox.DaytonaConfig {
	return &sandbox.DaytonaConfig{
		APIKey:         os.Getenv("DAYTONA_API_KEY"),
		OrganizationID: os.Getenv("DAYTONA_ORG_ID"),
		APIURL:         os.Getenv("DAYTONA_API_URL"),
		ReuseSandbox:   true,
	}
}
