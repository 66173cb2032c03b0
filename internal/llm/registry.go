package llm

import (
	"fmt"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// Registry resolves a configured model id to the agent.LLMProvider that
// serves it. Model ids are namespaced "<provider>/<model>" (e.g.
// "anthropic/claude-sonnet-4-20250514", "openai/gpt-4o"); the provider
// prefix selects the backend and the remainder is passed through as
// agent.CompletionRequest.Model.
type Registry struct {
	providers map[string]agent.LLMProvider
}

// NewRegistry builds a Registry from already-constructed providers,
// keyed by their namespace ("anthropic", "openai", ...).
func NewRegistry(providers map[string]agent.LLMProvider) *Registry {
	normalized := make(map[string]agent.LLMProvider, len(providers))
	for name, p := range providers {
		normalized[strings.ToLower(strings.TrimSpace(name))] = p
	}
	return &Registry{providers: normalized}
}

// Resolve splits modelID into a provider namespace and model name and
// returns the matching provider plus the bare model name to request.
func (r *Registry) Resolve(modelID string) (agent.LLMProvider, string, error) {
	namespace, model, ok := strings.Cut(modelID, "/")
	if !ok {
		return nil, "", fmt.Errorf("llm: model id %q is not namespaced as provider/model", modelID)
	}
	provider, ok := r.providers[strings.ToLower(namespace)]
	if !ok {
		return nil, "", fmt.Errorf("llm: no provider registered for namespace %q", namespace)
	}
	return provider, model, nil
}
