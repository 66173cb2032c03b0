package tools

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// fakeSandbox is an in-memory SandboxFacade used across this package's
// tests so every tool can be exercised without a live Daytona sandbox.
type fakeSandbox struct {
	files map[string][]byte
	fs    *fakeFs
	shell *fakeShell
	git   *fakeGit
}

func newFakeSandbox() *fakeSandbox {
	files := map[string][]byte{}
	return &fakeSandbox{
		files: files,
		fs:    &fakeFs{files: files},
		shell: &fakeShell{},
		git:   &fakeGit{},
	}
}

func (s *fakeSandbox) Fs() agent.FsFacade       { return s.fs }
func (s *fakeSandbox) Shell() agent.ShellFacade { return s.shell }
func (s *fakeSandbox) Git() agent.GitFacade     { return s.git }

type fakeFs struct {
	files map[string][]byte
}

func (f *fakeFs) ReadDir(p string, recursive bool, ignores []string) ([]agent.Dirent, error) {
	var out []agent.Dirent
	prefix := strings.TrimSuffix(p, "/") + "/"
	seen := map[string]bool{}
	for name := range f.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if !recursive {
			if idx := strings.Index(rest, "/"); idx >= 0 {
				rest = rest[:idx]
			}
		}
		full := prefix + rest
		if seen[full] {
			continue
		}
		seen[full] = true
		out = append(out, agent.Dirent{Name: path.Base(full), Path: full, ParentPath: p, Type: "file"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeFs) ReadFile(p string) ([]byte, error) {
	data, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("fakeFs: no such file %s", p)
	}
	return data, nil
}

func (f *fakeFs) WriteFile(p string, data []byte, recursive bool) error {
	f.files[p] = data
	return nil
}

func (f *fakeFs) Mkdir(p string, recursive bool) error { return nil }

func (f *fakeFs) Remove(p string, force, recursive bool) error {
	delete(f.files, p)
	return nil
}

func (f *fakeFs) Rename(oldPath, newPath string) error {
	data, ok := f.files[oldPath]
	if !ok {
		return fmt.Errorf("fakeFs: no such file %s", oldPath)
	}
	delete(f.files, oldPath)
	f.files[newPath] = data
	return nil
}

func (f *fakeFs) Stat(p string) (agent.Dirent, error) {
	data, ok := f.files[p]
	if !ok {
		return agent.Dirent{}, fmt.Errorf("fakeFs: no such file %s", p)
	}
	return agent.Dirent{Name: path.Base(p), Path: p, Type: "file", Size: int64(len(data))}, nil
}

func (f *fakeFs) Exists(p string) (bool, error) {
	_, ok := f.files[p]
	return ok, nil
}

func (f *fakeFs) Glob(patterns []string, cwd string, exclude []string) ([]string, error) {
	var matches []string
	for name := range f.files {
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, path.Base(name)); ok {
				matches = append(matches, name)
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

type fakeShell struct {
	lastCommand string
	result      agent.BashResult
}

func (s *fakeShell) Bash(cwd string, command string, env map[string]string, timeoutMs int) (agent.BashResult, error) {
	s.lastCommand = command
	if s.result.ExitCode == 0 && s.result.Stdout == "" && s.result.Stderr == "" {
		return agent.BashResult{ExitCode: 0, Stdout: "ok\n"}, nil
	}
	return s.result, nil
}

type fakeGit struct {
	calls [][]string
	dirty bool
}

func (g *fakeGit) Run(args ...string) agent.GitResult {
	g.calls = append(g.calls, append([]string{}, args...))
	if len(args) > 0 && args[0] == "status" {
		status := ""
		if g.dirty {
			status = " M file.txt\n"
		}
		return agent.GitResult{Success: true, Message: status}
	}
	return agent.GitResult{Success: true, Hash: "deadbeef"}
}
