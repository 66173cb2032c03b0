package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

func TestLsToolListsDirectoryNonRecursive(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.txt"] = []byte("1")
	sb.files["/repo/b.txt"] = []byte("2")
	sb.files["/repo/sub/c.txt"] = []byte("3")
	tool := NewLsTool()

	in, _ := json.Marshal(map[string]any{"path": "/repo"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	entries, _ := ev.Metadata["entries"].([]map[string]any)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (a.txt, b.txt, sub collapsed)", len(entries))
	}
}

func TestLsToolRequiresPath(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewLsTool()
	in, _ := json.Marshal(map[string]any{})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}
