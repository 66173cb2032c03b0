package runtypes

import "time"

// TodoStatus is the lifecycle state of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "inProgress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is one entry in a thread's todo list.
type TodoItem struct {
	ID       string     `json:"id"`
	Content  string     `json:"content"`
	Status   TodoStatus `json:"status"`
	Priority int        `json:"priority"`
}

// TodoList is the single todo row owned by a thread. At most one
// TodoItem may carry TodoInProgress at a time.
type TodoList struct {
	ThreadID  string     `json:"threadId"`
	Todos     []TodoItem `json:"todos"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CountInProgress returns how many items currently carry TodoInProgress.
func (t *TodoList) CountInProgress() int {
	n := 0
	for _, item := range t.Todos {
		if item.Status == TodoInProgress {
			n++
		}
	}
	return n
}
