package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

func TestGlobToolMatchesPattern(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.go"] = []byte("x")
	sb.files["/repo/b.txt"] = []byte("x")
	tool := NewGlobTool()

	in, _ := json.Marshal(map[string]any{"pattern": "*.go"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	files, _ := ev.Metadata["files"].([]string)
	if len(files) != 1 || files[0] != "/repo/a.go" {
		t.Fatalf("files = %v, want [/repo/a.go]", files)
	}
}

func TestGlobToolRequiresAPattern(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewGlobTool()
	in, _ := json.Marshal(map[string]any{})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestGlobToolAcceptsPatternsArray(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.go"] = []byte("x")
	sb.files["/repo/b.ts"] = []byte("x")
	tool := NewGlobTool()

	in, _ := json.Marshal(map[string]any{"patterns": []string{"*.go", "*.ts"}})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	files, _ := ev.Metadata["files"].([]string)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
}
