package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
instructions: be helpful
model: anthropic/claude-sonnet-4-20250514
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Instructions != "be helpful" {
		t.Fatalf("unexpected instructions: %q", cfg.Instructions)
	}
	if cfg.GenerateSuggestions.Limit != 3 {
		t.Fatalf("expected default suggestion limit of 3, got %d", cfg.GenerateSuggestions.Limit)
	}
	if cfg.StopWhen != 100 {
		t.Fatalf("expected default stopWhen of 100, got %d", cfg.StopWhen)
	}
	if cfg.AutoStopDelaySeconds != 60 {
		t.Fatalf("expected default autoStopDelay of 60s, got %d", cfg.AutoStopDelaySeconds)
	}
	if cfg.Models.Default != "anthropic/claude-sonnet-4-20250514" {
		t.Fatalf("expected models.default to fall back to model, got %q", cfg.Models.Default)
	}
}

func TestLoadHonorsExplicitOverrides(t *testing.T) {
	path := writeConfig(t, `
instructions: be helpful
model: anthropic/claude-sonnet-4-20250514
generateSuggestions:
  limit: 5
models:
  default: openai/gpt-4o
  available:
    - anthropic/claude-sonnet-4-20250514
    - openai/gpt-4o
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GenerateSuggestions.Limit != 5 {
		t.Fatalf("expected explicit suggestion limit to survive, got %d", cfg.GenerateSuggestions.Limit)
	}
	if cfg.Models.Default != "openai/gpt-4o" {
		t.Fatalf("expected explicit models.default to win over model, got %q", cfg.Models.Default)
	}
	if len(cfg.Models.Available) != 2 {
		t.Fatalf("expected two available models, got %d", len(cfg.Models.Available))
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte("appName: agentstart\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	mainPath := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(mainPath, []byte("$include: base.yaml\ninstructions: be helpful\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppName != "agentstart" {
		t.Fatalf("expected included appName to merge in, got %q", cfg.AppName)
	}
	if cfg.Instructions != "be helpful" {
		t.Fatalf("expected main file's own fields to survive the merge, got %q", cfg.Instructions)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
instructions: be helpful
nonsenseField: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.yaml")
	bPath := filepath.Join(dir, "b.yaml")
	if err := os.WriteFile(aPath, []byte("$include: b.yaml\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(bPath, []byte("$include: a.yaml\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Load(aPath)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected an include cycle error, got %v", err)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentstart.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
