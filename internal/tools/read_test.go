package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

func newTestRC(sb *fakeSandbox) *agent.RuntimeContext {
	return &agent.RuntimeContext{Sandbox: sb}
}

func TestReadToolReturnsLineNumberedContent(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.txt"] = []byte("one\ntwo\nthree")
	tool := NewReadTool()

	in, _ := json.Marshal(map[string]any{"filePath": "/repo/a.txt"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	content, _ := ev.Metadata["content"].(string)
	if content == "" {
		t.Fatal("expected non-empty content")
	}
	if want := "00001| one\n"; content[:len(want)] != want {
		t.Fatalf("content = %q, want prefix %q", content, want)
	}
}

func TestReadToolRejectsRelativePath(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewReadTool()
	in, _ := json.Marshal(map[string]any{"filePath": "relative.txt"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestReadToolRejectsBinaryExtension(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.png"] = []byte("whatever")
	tool := NewReadTool()
	in, _ := json.Marshal(map[string]any{"filePath": "/repo/a.png"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestReadToolMissingFileIsError(t *testing.T) {
	sb := newFakeSandbox()
	tool := NewReadTool()
	in, _ := json.Marshal(map[string]any{"filePath": "/repo/missing.txt"})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestReadToolOffsetBeyondFileReturnsEmpty(t *testing.T) {
	sb := newFakeSandbox()
	sb.files["/repo/a.txt"] = []byte("one\ntwo")
	tool := NewReadTool()
	in, _ := json.Marshal(map[string]any{"filePath": "/repo/a.txt", "offset": 100})
	ev := agent.RunToCompletion(tool.Execute(context.Background(), newTestRC(sb), in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	if ev.Metadata["content"] != "" {
		t.Fatalf("content = %v, want empty", ev.Metadata["content"])
	}
}

func TestLooksBinaryDetectsNullByte(t *testing.T) {
	if !looksBinary([]byte("abc\x00def")) {
		t.Fatal("expected null byte to be detected as binary")
	}
}

func TestLooksBinaryAllowsPlainText(t *testing.T) {
	if looksBinary([]byte("hello\nworld\n")) {
		t.Fatal("expected plain text to not be flagged binary")
	}
}
