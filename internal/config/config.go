// Package config loads the runtime's host-supplied configuration: the
// agent's model/instructions/tools, transport and storage settings, and
// the auxiliary title/suggestion generation options (§6).
package config

// GenerateTitle configures first-message thread title generation.
type GenerateTitle struct {
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
}

// GenerateSuggestions configures follow-up prompt generation.
type GenerateSuggestions struct {
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
	Limit        int    `yaml:"limit"`
}

// Welcome describes the app's idle-state greeting.
type Welcome struct {
	Description string   `yaml:"description"`
	Suggestions []string `yaml:"suggestions"`
}

// Models lists the model ids a host exposes through config.get, and
// which one is used when a thread.stream call omits model.
type Models struct {
	Default   string   `yaml:"default"`
	Available []string `yaml:"available"`
}

// Blob configures the blob upload endpoint (§6, treated as an external
// collaborator — only its limits are configured here).
type Blob struct {
	Provider         string   `yaml:"provider"`
	MaxFileSize      int64    `yaml:"maxFileSize"`
	AllowedMimeTypes []string `yaml:"allowedMimeTypes"`
	MaxFiles         int      `yaml:"maxFiles"`
}

// Config is the full set of host-supplied configuration options
// (spec.md §6's Configuration options list).
type Config struct {
	Instructions        string              `yaml:"instructions"`
	AgentsMDPrompt       string              `yaml:"agentsMDPrompt"`
	Model                string              `yaml:"model"`
	Tools                []string            `yaml:"tools"`
	StopWhen             int                 `yaml:"stopWhen"`
	Context              map[string]any      `yaml:"context"`
	MessageMetadata      map[string]any      `yaml:"messageMetadata"`
	GenerateTitle        GenerateTitle       `yaml:"generateTitle"`
	GenerateSuggestions  GenerateSuggestions `yaml:"generateSuggestions"`
	AutoStopDelaySeconds int                 `yaml:"autoStopDelay"`
	TimeoutSeconds       int                 `yaml:"timeout"`
	AppName              string              `yaml:"appName"`
	BaseURL              string              `yaml:"baseURL"`
	Welcome              Welcome             `yaml:"welcome"`
	Models               Models              `yaml:"models"`
	Blob                 Blob                `yaml:"blob"`
}

// Load reads and parses a configuration file at path, resolving
// $include directives (loader.go) before decoding into a Config.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GenerateSuggestions.Limit == 0 {
		c.GenerateSuggestions.Limit = 3
	}
	if c.StopWhen == 0 {
		c.StopWhen = 100
	}
	if c.AutoStopDelaySeconds == 0 {
		c.AutoStopDelaySeconds = 60
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 600
	}
	if c.Models.Default == "" && c.Model != "" {
		c.Models.Default = c.Model
	}
}
