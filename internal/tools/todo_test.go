package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/memory"
)

func newTodoRC(mem memory.Adapter, threadID string) *agent.RuntimeContext {
	return &agent.RuntimeContext{ThreadID: threadID, Memory: mem}
}

func TestTodoWriteThenTodoReadRoundTrips(t *testing.T) {
	mem := memory.NewInMemoryAdapter()
	rc := newTodoRC(mem, "t1")

	writeTool := NewTodoWriteTool()
	in, _ := json.Marshal(map[string]any{"todos": []map[string]any{
		{"content": "step one", "status": "pending"},
	}})
	ev := agent.RunToCompletion(writeTool.Execute(context.Background(), rc, in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("write status = %v, err = %v", ev.Status, ev.Err)
	}

	readTool := NewTodoReadTool()
	ev = agent.RunToCompletion(readTool.Execute(context.Background(), rc, json.RawMessage(`{}`)))
	if ev.Status != agent.StatusDone {
		t.Fatalf("read status = %v, err = %v", ev.Status, ev.Err)
	}
	todos, ok := ev.Metadata["todos"].([]any)
	if !ok || len(todos) != 1 {
		t.Fatalf("todos = %v", ev.Metadata["todos"])
	}
}

func TestTodoReadErrorsWhenNoTodosExist(t *testing.T) {
	mem := memory.NewInMemoryAdapter()
	rc := newTodoRC(mem, "t1")
	readTool := NewTodoReadTool()
	ev := agent.RunToCompletion(readTool.Execute(context.Background(), rc, json.RawMessage(`{}`)))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestTodoWriteRejectsMultipleInProgress(t *testing.T) {
	mem := memory.NewInMemoryAdapter()
	rc := newTodoRC(mem, "t1")
	writeTool := NewTodoWriteTool()
	in, _ := json.Marshal(map[string]any{"todos": []map[string]any{
		{"content": "a", "status": "inProgress"},
		{"content": "b", "status": "inProgress"},
	}})
	ev := agent.RunToCompletion(writeTool.Execute(context.Background(), rc, in))
	if ev.Status != agent.StatusError {
		t.Fatalf("status = %v, want error", ev.Status)
	}
}

func TestTodoWriteAssignsIDsWhenMissing(t *testing.T) {
	mem := memory.NewInMemoryAdapter()
	rc := newTodoRC(mem, "t1")
	writeTool := NewTodoWriteTool()
	in, _ := json.Marshal(map[string]any{"todos": []map[string]any{
		{"content": "a", "status": "pending"},
	}})
	ev := agent.RunToCompletion(writeTool.Execute(context.Background(), rc, in))
	if ev.Status != agent.StatusDone {
		t.Fatalf("status = %v, err = %v", ev.Status, ev.Err)
	}
	todos, _ := ev.Metadata["todos"].([]any)
	first, _ := todos[0].(map[string]any)
	if first["id"] == "" || first["id"] == nil {
		t.Fatal("expected a generated id")
	}
}
