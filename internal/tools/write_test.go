package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

func TestWriteToolCreatesFile(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewWriteTool(GitIdentity{Name: "bot", Email: "bot@example.com"})

	in, _ := json.Marshal(map[string]any{"filePath": "/repo/new.txt", "content": "hello"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	if string(sb.files["/repo/new.txt"]) != "hello" {
		t.Fatalf("file contents = %q, want hello", sb.files["/repo/new.txt"])
	}
}

func TestWriteToolRejectsRelativePath(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewWriteTool(GitIdentity{})
	in, _ := json.Marshal(map[string]any{"filePath": "rel.txt", "content": "x"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestWriteToolAutoCommitsWhenTreeDirty(t *testing.T) {
	sb := newFakeSandbox()
	sb.git.dirty = true
	tool := NewWriteTool(GitIdentity{Name: "bot", Email: "bot@example.com"})

	in, _ := json.Marshal(map[string]any{"filePath": "/repo/new.txt", "content": "hello"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	if ev.Metadata["commitHash"] != "deadbeef" {
		t.Fatalf("commitHash = %v, want deadbeef", ev.Metadata["commitHash"])
	}
}

func TestWriteToolNoCommitWhenTreeClean(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewWriteTool(GitIdentity{Name: "bot", Email: "bot@example.com"})

	in, _ := json.Marshal(map[string]any{"filePath": "/repo/new.txt", "content": "hello"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	if _, ok := ev.Metadata["commitHash"]; ok {
		t.Fatal("expected no commitHash when the working tree is clean")
	}
}
