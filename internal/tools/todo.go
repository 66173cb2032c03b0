package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
	"github.com/google/uuid"
)

// TodoReadTool implements todoRead (§4.3): returns the thread's todos,
// reporting status:"error" when the thread has none.
type TodoReadTool struct{ schema *jsonschemaSchema }

func NewTodoReadTool() *TodoReadTool {
	return &TodoReadTool{schema: newSchema("todoread.schema.json", mustSchema(map[string]any{"type": "object"}))}
}

func (t *TodoReadTool) Name() string                 { return "todoRead" }
func (t *TodoReadTool) Description() string          { return "Read the thread's current todo list." }
func (t *TodoReadTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *TodoReadTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{"todos": map[string]any{"type": "array"}}})
}

func (t *TodoReadTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 2)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Reading todos"}

		row, err := rc.Memory.FindOne(ctx, memory.ModelTodo, memory.Where{{Field: "threadId", Operator: memory.OpEq, Value: rc.ThreadID}})
		if err != nil || row == nil {
			ch <- errorEvent("todoRead", fmt.Errorf("no todos for thread %s", rc.ThreadID))
			return
		}
		ch <- doneEvent(map[string]any{"todos": row["todos"]})
	}()
	return ch
}

func (t *TodoReadTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }

// TodoWriteTool implements todoWrite (§4.3): assigns ids, enforces the
// single-inProgress invariant locally before calling the adapter
// (defense in depth with the adapter's own check, per §9).
type TodoWriteTool struct{ schema *jsonschemaSchema }

func NewTodoWriteTool() *TodoWriteTool {
	return &TodoWriteTool{schema: newSchema("todowrite.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"content":  map[string]any{"type": "string"},
						"status":   map[string]any{"type": "string", "enum": []string{"pending", "inProgress", "completed"}},
						"priority": map[string]any{"type": "integer"},
					},
					"required": []string{"content", "status"},
				},
			},
		},
		"required": []string{"todos"},
	}))}
}

func (t *TodoWriteTool) Name() string                 { return "todoWrite" }
func (t *TodoWriteTool) Description() string          { return "Replace the thread's todo list." }
func (t *TodoWriteTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *TodoWriteTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{"todos": map[string]any{"type": "array"}}})
}

type todoWriteInput struct {
	Todos []runtypes.TodoItem `json:"todos"`
}

func (t *TodoWriteTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 2)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Updating todos"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("todoWrite", err)
			return
		}
		var in todoWriteInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("todoWrite", err)
			return
		}

		inProgress := 0
		for i := range in.Todos {
			if in.Todos[i].ID == "" {
				id, err := uuid.NewV7()
				if err != nil {
					in.Todos[i].ID = uuid.NewString()
				} else {
					in.Todos[i].ID = id.String()
				}
			}
			if in.Todos[i].Status == runtypes.TodoInProgress {
				inProgress++
			}
		}
		if inProgress > 1 {
			ch <- errorEvent("todoWrite", fmt.Errorf("Only one task can be inProgress at a time"))
			return
		}

		todosAny := make([]any, len(in.Todos))
		for i, td := range in.Todos {
			todosAny[i] = map[string]any{"id": td.ID, "content": td.Content, "status": string(td.Status), "priority": td.Priority}
		}

		now := time.Now().UTC()
		_, err := rc.Memory.Upsert(ctx, memory.ModelTodo,
			memory.Where{{Field: "threadId", Operator: memory.OpEq, Value: rc.ThreadID}},
			memory.Row{"threadId": rc.ThreadID, "todos": todosAny, "updatedAt": now},
			memory.Row{"todos": todosAny, "updatedAt": now},
		)
		if err != nil {
			ch <- errorEvent("todoWrite", err)
			return
		}
		ch <- doneEvent(map[string]any{"todos": todosAny})
	}()
	return ch
}

func (t *TodoWriteTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }
