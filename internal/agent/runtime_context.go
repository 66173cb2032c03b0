package agent

import (
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/internal/observability"
)

// RuntimeContext is the explicit context value threaded through every
// tool call and adapter call (design notes §9) — never stored in a
// process global. ThreadID identifies the owning thread; Memory and
// Sandbox are the two adapters a tool may touch; Writer receives
// progress frames a tool wants surfaced before its terminal event.
// Metrics and Tracer are optional and, when set, let the loop and tool
// dispatcher record counters and spans without a global.
type RuntimeContext struct {
	ThreadID string
	Memory   memory.Adapter
	Sandbox  SandboxFacade
	Writer   ProgressWriter
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
}

// ProgressWriter receives ad hoc progress notifications a tool wants to
// surface mid-execution, independent of its ToolEvent stream.
type ProgressWriter interface {
	WriteProgress(toolCallID, message string)
}

// SandboxFacade is the subset of the Sandbox Adapter (§4.2) tools call
// directly. Defined here (rather than importing internal/sandbox's
// concrete type) so the tool registry can depend on the narrow surface
// it actually uses and so a fake can back the conformance test kit.
type SandboxFacade interface {
	Fs() FsFacade
	Shell() ShellFacade
	Git() GitFacade
}

// FsFacade is the filesystem capability of a sandbox (§4.2).
type FsFacade interface {
	ReadDir(path string, recursive bool, ignores []string) ([]Dirent, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, recursive bool) error
	Mkdir(path string, recursive bool) error
	Remove(path string, force, recursive bool) error
	Rename(oldPath, newPath string) error
	Stat(path string) (Dirent, error)
	Exists(path string) (bool, error)
	Glob(patterns []string, cwd string, exclude []string) ([]string, error)
}

// Dirent describes one filesystem entry (§4.2 readdir).
type Dirent struct {
	Name         string
	Path         string
	ParentPath   string
	Type         string // "file" | "dir" | "symlink"
	Size         int64
	ModifiedTime int64 // unix millis
}

// ShellFacade is the shell capability of a sandbox (§4.2).
type ShellFacade interface {
	Bash(cwd string, command string, env map[string]string, timeoutMs int) (BashResult, error)
}

// BashResult is the outcome of one Shell.Bash call.
type BashResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
	Duration int64 // milliseconds
}

// GitFacade is the git capability of a sandbox (§4.2).
type GitFacade interface {
	Run(args ...string) GitResult
}

// GitResult is the outcome of one git subcommand invocation.
type GitResult struct {
	Success  bool
	Message  string
	ErrorMsg string
	ExitCode int
	Hash     string
}
