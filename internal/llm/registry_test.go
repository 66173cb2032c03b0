package llm

import (
	"context"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

type stubProvider struct{ name string }

func (s *stubProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.CompletionDelta, error) {
	ch := make(chan agent.CompletionDelta)
	close(ch)
	return ch, nil
}

func (s *stubProvider) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	return s.name, nil
}

func TestRegistryResolveSplitsNamespaceAndModel(t *testing.T) {
	reg := NewRegistry(map[string]agent.LLMProvider{
		"anthropic": &stubProvider{name: "anthropic"},
		"openai":    &stubProvider{name: "openai"},
	})

	provider, model, err := reg.Resolve("anthropic/claude-sonnet-4-20250514")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected model: %q", model)
	}
	if provider.(*stubProvider).name != "anthropic" {
		t.Fatalf("resolved the wrong provider: %+v", provider)
	}
}

func TestRegistryResolveIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry(map[string]agent.LLMProvider{
		"openai": &stubProvider{name: "openai"},
	})
	if _, _, err := reg.Resolve("OpenAI/gpt-4o"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestRegistryResolveUnknownNamespace(t *testing.T) {
	reg := NewRegistry(map[string]agent.LLMProvider{"anthropic": &stubProvider{}})
	if _, _, err := reg.Resolve("mistral/large"); err == nil {
		t.Fatal("expected an error for an unregistered provider namespace")
	}
}

func TestRegistryResolveRequiresNamespace(t *testing.T) {
	reg := NewRegistry(map[string]agent.LLMProvider{"anthropic": &stubProvider{}})
	if _, _, err := reg.Resolve("claude-sonnet-4-20250514"); err == nil {
		t.Fatal("expected an error for a non-namespaced model id")
	}
}
