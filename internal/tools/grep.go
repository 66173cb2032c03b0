package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// GrepTool implements the grep tool (§4.3): a thin layer over the
// sandbox shell's grep binary. It prefers `-Z`/`--null-data` output
// (probed once per sandbox and cached) and falls back to a
// split-on-first-unescaped-colon heuristic otherwise (§9 Open
// Questions: "grep filename-colon ambiguity").
type GrepTool struct {
	schema *jsonschemaSchema

	mu          sync.Mutex
	nullDataOK  map[agent.ShellFacade]bool
}

func NewGrepTool() *GrepTool {
	return &GrepTool{
		schema: newSchema("grep.schema.json", mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern":    map[string]any{"type": "string"},
				"path":       map[string]any{"type": "string"},
				"include":    map[string]any{"type": "string"},
				"exclude":    map[string]any{"type": "string"},
				"ignoreCase": map[string]any{"type": "boolean"},
				"wholeWord":  map[string]any{"type": "boolean"},
				"recursive":  map[string]any{"type": "boolean"},
				"context":    map[string]any{"type": "integer"},
				"maxResults": map[string]any{"type": "integer"},
			},
			"required": []string{"pattern"},
		})),
		nullDataOK: make(map[agent.ShellFacade]bool),
	}
}

func (t *GrepTool) Name() string                 { return "grep" }
func (t *GrepTool) Description() string          { return "Search sandbox files for a regular expression." }
func (t *GrepTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *GrepTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{"files": map[string]any{"type": "array"}}})
}

type grepInput struct {
	Pattern    string `json:"pattern"`
	Path       string `json:"path"`
	Include    string `json:"include"`
	Exclude    string `json:"exclude"`
	IgnoreCase bool   `json:"ignoreCase"`
	WholeWord  bool   `json:"wholeWord"`
	Recursive  bool   `json:"recursive"`
	Context    int    `json:"context"`
	MaxResults int    `json:"maxResults"`
}

type grepMatch struct {
	Line       string `json:"line"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

type grepFileResult struct {
	Filename   string      `json:"filename"`
	Matches    []grepMatch `json:"matches"`
	MatchCount int         `json:"matchCount"`
}

func (t *GrepTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Searching files"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("grep", err)
			return
		}
		var in grepInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("grep", err)
			return
		}

		shell := rc.Sandbox.Shell()
		cmd, useNullData := t.buildCommand(shell, in)
		res, err := shell.Bash(in.Path, cmd, nil, 60000)
		if err != nil {
			ch <- errorEvent("grep", err)
			return
		}
		if res.ExitCode > 1 {
			ch <- errorEvent("grep", fmt.Errorf("grep failed: %s", res.Stderr))
			return
		}

		files := parseGrepOutput(res.Stdout, useNullData)
		totalMatches := 0
		for _, f := range files {
			totalMatches += f.MatchCount
		}

		ch <- doneEvent(map[string]any{
			"files":        files,
			"totalFiles":   len(files),
			"totalMatches": totalMatches,
		})
	}()
	return ch
}

func (t *GrepTool) buildCommand(shell agent.ShellFacade, in grepInput) (string, bool) {
	t.mu.Lock()
	useNullData, probed := t.nullDataOK[shell]
	t.mu.Unlock()
	if !probed {
		probeRes, err := shell.Bash("", "grep --null-data --version", nil, 5000)
		useNullData = err == nil && probeRes.ExitCode == 0
		t.mu.Lock()
		t.nullDataOK[shell] = useNullData
		t.mu.Unlock()
	}

	var b strings.Builder
	b.WriteString("grep -n")
	if useNullData {
		b.WriteString(" -Z")
	}
	if in.IgnoreCase {
		b.WriteString(" -i")
	}
	if in.WholeWord {
		b.WriteString(" -w")
	}
	if in.Recursive {
		b.WriteString(" -r")
	}
	if in.Context > 0 {
		b.WriteString(" -C " + strconv.Itoa(in.Context))
	}
	if in.Include != "" {
		b.WriteString(" --include=" + strconv.Quote(in.Include))
	}
	if in.Exclude != "" {
		b.WriteString(" --exclude=" + strconv.Quote(in.Exclude))
	}
	b.WriteString(" -e " + strconv.Quote(in.Pattern))
	if in.Path != "" {
		b.WriteString(" " + strconv.Quote(in.Path))
	} else {
		b.WriteString(" .")
	}
	return b.String(), useNullData
}

// parseGrepOutput parses `grep -n` output, either null-data-delimited
// (`filename\0lineNumber:content`) or the classic
// `filename:lineNumber:content` form, which is ambiguous when the
// filename itself contains a colon — resolved by splitting on the
// first colon followed by a run of digits then another colon.
func parseGrepOutput(output string, nullData bool) []grepFileResult {
	byFile := map[string]*grepFileResult{}
	var order []string

	addMatch := func(filename string, lineNo int, line string) {
		res, ok := byFile[filename]
		if !ok {
			res = &grepFileResult{Filename: filename}
			byFile[filename] = res
			order = append(order, filename)
		}
		res.Matches = append(res.Matches, grepMatch{Line: line, LineNumber: lineNo})
		res.MatchCount++
	}

	lines := strings.Split(output, "\n")
	for _, raw := range lines {
		if raw == "" {
			continue
		}
		if nullData {
			parts := strings.SplitN(raw, "\x00", 2)
			if len(parts) != 2 {
				continue
			}
			filename := parts[0]
			rest := parts[1]
			lineNo, content := splitLineNumber(rest)
			addMatch(filename, lineNo, content)
			continue
		}
		filename, lineNo, content, ok := splitClassicGrepLine(raw)
		if !ok {
			continue
		}
		addMatch(filename, lineNo, content)
	}

	out := make([]grepFileResult, 0, len(order))
	for _, f := range order {
		out = append(out, *byFile[f])
	}
	return out
}

func splitLineNumber(s string) (int, string) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return 0, s
	}
	n, err := strconv.Atoi(s[:idx])
	if err != nil {
		return 0, s
	}
	return n, s[idx+1:]
}

// splitClassicGrepLine handles "filename:lineNumber:content" by
// finding the first `:<digits>:` run, treating everything before it as
// the filename.
func splitClassicGrepLine(line string) (filename string, lineNo int, content string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(line) && line[j] >= '0' && line[j] <= '9' {
			j++
		}
		if j == i+1 || j >= len(line) || line[j] != ':' {
			continue
		}
		n, err := strconv.Atoi(line[i+1 : j])
		if err != nil {
			continue
		}
		return line[:i], n, line[j+1:], true
	}
	return "", 0, "", false
}
