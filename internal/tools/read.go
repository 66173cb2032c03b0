package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

const (
	defaultReadLimit = 2000
	maxLineChars     = 2000
)

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".svg": true, ".pdf": true, ".zip": true,
	".tar": true, ".gz": true, ".exe": true, ".dll": true, ".so": true,
	".bin": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// ReadTool implements the read tool (§4.3): line-numbered file reads
// with a 2000-line default window and a 5-digit zero-padded prefix.
type ReadTool struct {
	schema *jsonschemaSchema
}

func NewReadTool() *ReadTool {
	return &ReadTool{schema: newSchema("read.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{"type": "string"},
			"offset":   map[string]any{"type": "integer", "minimum": 0},
			"limit":    map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"filePath"},
	}))}
}

func (t *ReadTool) Name() string                    { return "read" }
func (t *ReadTool) Description() string             { return "Read a file from the sandbox workspace, with line numbers." }
func (t *ReadTool) InputSchema() json.RawMessage    { return t.schema.raw }
func (t *ReadTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":  map[string]any{"type": "string"},
			"lines":    map[string]any{"type": "integer"},
			"truncated": map[string]any{"type": "boolean"},
		},
	})
}

type readInput struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

func (t *ReadTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Reading file"}

		var in readInput
		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("read", err)
			return
		}
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("read", err)
			return
		}
		if !filepath.IsAbs(in.FilePath) {
			ch <- errorEvent("read", fmt.Errorf("filePath must be absolute: %s", in.FilePath))
			return
		}
		ext := strings.ToLower(filepath.Ext(in.FilePath))
		if binaryExtensions[ext] {
			ch <- errorEvent("read", fmt.Errorf("cannot read binary file type %s", ext))
			return
		}

		data, err := rc.Sandbox.Fs().ReadFile(in.FilePath)
		if err != nil {
			ch <- errorEvent("read", err)
			return
		}
		if looksBinary(data) {
			ch <- errorEvent("read", fmt.Errorf("file appears to be binary"))
			return
		}

		limit := in.Limit
		if limit <= 0 {
			limit = defaultReadLimit
		}
		offset := in.Offset
		allLines := strings.Split(string(data), "\n")

		if offset >= len(allLines) {
			ch <- doneEvent(map[string]any{"content": "", "lines": 0, "truncated": false})
			return
		}

		end := offset + limit
		truncated := end < len(allLines)
		if end > len(allLines) {
			end = len(allLines)
		}

		var b strings.Builder
		for i := offset; i < end; i++ {
			line := allLines[i]
			if len(line) > maxLineChars {
				line = line[:maxLineChars] + "... [line truncated]"
			}
			fmt.Fprintf(&b, "%05d| %s\n", i+1, line)
		}

		ch <- doneEvent(map[string]any{
			"content":   b.String(),
			"lines":     end - offset,
			"truncated": truncated,
		})
	}()
	return ch
}

func (t *ReadTool) ToModelOutput(event agent.ToolEvent) json.RawMessage {
	return toModelOutput(event)
}

// looksBinary applies the §4.3 heuristic: a null byte in the first 4096
// bytes, or >30% non-printable bytes, marks content as binary.
func looksBinary(data []byte) bool {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			nonPrintable++
		}
	}
	if len(sample) == 0 {
		return false
	}
	return float64(nonPrintable)/float64(len(sample)) > 0.30
}
