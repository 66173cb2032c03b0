package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/config"
	"github.com/agentstart/agentstart-sub001/internal/llm"
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/internal/tools"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

type stubProvider struct {
	completeReply string
}

func (p *stubProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.CompletionDelta, error) {
	ch := make(chan agent.CompletionDelta)
	close(ch)
	return ch, nil
}

func (p *stubProvider) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	return p.completeReply, nil
}

func newTestCoordinator(t *testing.T, cfg *config.Config) *Coordinator {
	t.Helper()
	registry := llm.NewRegistry(map[string]agent.LLMProvider{
		"test": &stubProvider{completeReply: "a title"},
	})
	return New(memory.NewInMemoryAdapter(), registry, cfg, nil, nil, tools.GitIdentity{Name: "bot", Email: "bot@example.com"})
}

func TestCoordinatorResolveModelFallsBackToConfig(t *testing.T) {
	cfg := &config.Config{Model: "test/fallback", Models: config.Models{Default: "test/default"}}
	c := newTestCoordinator(t, cfg)

	if got := c.resolveModel("test/explicit"); got != "test/explicit" {
		t.Fatalf("resolveModel(explicit) = %q", got)
	}
	if got := c.resolveModel(""); got != "test/default" {
		t.Fatalf("resolveModel(\"\") = %q, want default", got)
	}

	cfg2 := &config.Config{Model: "test/fallback"}
	c2 := newTestCoordinator(t, cfg2)
	if got := c2.resolveModel(""); got != "test/fallback" {
		t.Fatalf("resolveModel(\"\") = %q, want fallback model", got)
	}
}

func TestCoordinatorBuildToolsFiltersByConfig(t *testing.T) {
	cfg := &config.Config{Tools: []string{"read", "ls"}}
	c := newTestCoordinator(t, cfg)

	selected := c.buildTools(c.Identity)
	if len(selected) != 2 {
		t.Fatalf("len(selected) = %d, want 2", len(selected))
	}
	if _, ok := selected["read"]; !ok {
		t.Fatal("expected read tool to be selected")
	}
	if _, ok := selected["bash"]; ok {
		t.Fatal("bash should have been filtered out")
	}
}

func TestCoordinatorBuildToolsReturnsAllWhenUnconfigured(t *testing.T) {
	cfg := &config.Config{}
	c := newTestCoordinator(t, cfg)

	all := tools.Registry(c.Identity)
	selected := c.buildTools(c.Identity)
	if len(selected) != len(all) {
		t.Fatalf("len(selected) = %d, want %d", len(selected), len(all))
	}
}

func TestCoordinatorSandboxTTLDefaultsWhenUnset(t *testing.T) {
	cfg := &config.Config{}
	c := newTestCoordinator(t, cfg)
	if got := c.sandboxTTL(); got != 60*time.Second {
		t.Fatalf("sandboxTTL() = %v, want 60s", got)
	}
}

func TestCoordinatorSandboxTTLUsesConfiguredDelay(t *testing.T) {
	cfg := &config.Config{AutoStopDelaySeconds: 120}
	c := newTestCoordinator(t, cfg)
	if got := c.sandboxTTL(); got != 120*time.Second {
		t.Fatalf("sandboxTTL() = %v, want 120s", got)
	}
}

func TestCacheCapableReflectsAnthropicOnly(t *testing.T) {
	if cacheCapable(&stubProvider{}) {
		t.Fatal("stub provider should not report cache capability")
	}
}

func TestSplitSuggestionsRespectsLimit(t *testing.T) {
	raw := "1. first idea\n2. second idea\n3. third idea\n4. fourth idea"
	got := splitSuggestions(raw, 3)
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if got[0] != "first idea" {
		t.Fatalf("got[0] = %q", got[0])
	}
}

func TestSplitSuggestionsSkipsBlankLines(t *testing.T) {
	raw := "- one\n\n- two\n"
	got := splitSuggestions(raw, 5)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestFirstTextPartReturnsFirstTextOnly(t *testing.T) {
	parts := []runtypes.Part{
		{Type: runtypes.PartReasoning, Text: "thinking"},
		{Type: runtypes.PartText, Text: "hello"},
		{Type: runtypes.PartText, Text: "world"},
	}
	if got := firstTextPart(parts); got != "hello" {
		t.Fatalf("firstTextPart() = %q, want hello", got)
	}
}

func TestCountUserMessages(t *testing.T) {
	history := []runtypes.Message{
		{Role: runtypes.RoleUser},
		{Role: runtypes.RoleAssistant},
		{Role: runtypes.RoleUser},
	}
	if got := countUserMessages(history); got != 2 {
		t.Fatalf("countUserMessages() = %d, want 2", got)
	}
}
