// Package coordinator implements the Thread Stream Coordinator (§4.6):
// the public thread.stream entry point, plus the thread CRUD
// operations the RPC surface exposes alongside it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// ErrThreadNotFound is returned when a referenced thread does not exist.
var ErrThreadNotFound = errors.New("coordinator: thread not found")

// ErrForbidden is returned when a caller tries to read or stream a
// private thread owned by a different user.
var ErrForbidden = errors.New("coordinator: forbidden")

// ThreadStore wraps the Memory Adapter's thread model with the
// ownership and visibility checks every thread-touching RPC needs.
type ThreadStore struct {
	mem memory.Adapter
}

func NewThreadStore(mem memory.Adapter) *ThreadStore {
	return &ThreadStore{mem: mem}
}

func (s *ThreadStore) Create(ctx context.Context, userID, title string, visibility runtypes.Visibility) (runtypes.Thread, error) {
	if visibility == "" {
		visibility = runtypes.VisibilityPrivate
	}
	id, err := uuid.NewV7()
	idStr := id.String()
	if err != nil {
		idStr = uuid.NewString()
	}
	now := time.Now().UTC()
	row, err := s.mem.Create(ctx, memory.ModelThread, memory.Row{
		"id": idStr, "userId": userID, "title": title,
		"visibility": string(visibility), "createdAt": now, "updatedAt": now,
	})
	if err != nil {
		return runtypes.Thread{}, fmt.Errorf("coordinator: create thread: %w", err)
	}
	return rowToThread(row), nil
}

// Get returns threadID, enforcing the 404/403 rule from §4.6 step 1:
// a missing thread is ErrThreadNotFound; a private thread owned by
// someone else is ErrForbidden.
func (s *ThreadStore) Get(ctx context.Context, threadID, userID string) (runtypes.Thread, error) {
	row, err := s.mem.FindOne(ctx, memory.ModelThread, memory.Where{
		{Field: "id", Operator: memory.OpEq, Value: threadID},
	})
	if err != nil {
		return runtypes.Thread{}, fmt.Errorf("coordinator: get thread: %w", err)
	}
	if row == nil {
		return runtypes.Thread{}, ErrThreadNotFound
	}
	thread := rowToThread(row)
	if thread.Visibility == runtypes.VisibilityPrivate && thread.UserID != userID {
		return runtypes.Thread{}, ErrForbidden
	}
	return thread, nil
}

func (s *ThreadStore) List(ctx context.Context, userID string, page, pageSize int) ([]runtypes.Thread, runtypes.PageInfo, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	where := memory.Where{{Field: "userId", Operator: memory.OpEq, Value: userID}}
	total, err := s.mem.Count(ctx, memory.ModelThread, where)
	if err != nil {
		return nil, runtypes.PageInfo{}, fmt.Errorf("coordinator: count threads: %w", err)
	}
	rows, err := s.mem.FindMany(ctx, memory.ModelThread, where,
		&memory.SortOrder{Field: "updatedAt", Desc: true}, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, runtypes.PageInfo{}, fmt.Errorf("coordinator: list threads: %w", err)
	}
	threads := make([]runtypes.Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, rowToThread(row))
	}
	return threads, runtypes.PageInfo{
		Page: page, PageSize: pageSize, Total: total,
		HasMore: page*pageSize < total,
	}, nil
}

func (s *ThreadStore) Update(ctx context.Context, threadID, userID string, title *string, visibility *runtypes.Visibility, lastContext map[string]any) (runtypes.Thread, error) {
	if _, err := s.Get(ctx, threadID, userID); err != nil {
		return runtypes.Thread{}, err
	}
	patch := memory.Row{}
	if title != nil {
		patch["title"] = *title
	}
	if visibility != nil {
		patch["visibility"] = string(*visibility)
	}
	if lastContext != nil {
		patch["lastContext"] = lastContext
	}
	row, err := s.mem.Update(ctx, memory.ModelThread, memory.Where{
		{Field: "id", Operator: memory.OpEq, Value: threadID},
	}, patch)
	if err != nil {
		return runtypes.Thread{}, fmt.Errorf("coordinator: update thread: %w", err)
	}
	if row == nil {
		return runtypes.Thread{}, ErrThreadNotFound
	}
	return rowToThread(row), nil
}

// Delete removes a thread and, per §6, cascades its messages.
func (s *ThreadStore) Delete(ctx context.Context, threadID, userID string) error {
	if _, err := s.Get(ctx, threadID, userID); err != nil {
		return err
	}
	if _, err := s.mem.DeleteMany(ctx, memory.ModelMessage, memory.Where{
		{Field: "threadId", Operator: memory.OpEq, Value: threadID},
	}); err != nil {
		return fmt.Errorf("coordinator: delete thread messages: %w", err)
	}
	if err := s.mem.Delete(ctx, memory.ModelThread, memory.Where{
		{Field: "id", Operator: memory.OpEq, Value: threadID},
	}); err != nil {
		return fmt.Errorf("coordinator: delete thread: %w", err)
	}
	return nil
}

// SetSandboxID persists the sandbox a thread has been bound to, so a
// later stream call reuses it instead of provisioning a new one.
func (s *ThreadStore) SetSandboxID(ctx context.Context, threadID, sandboxID string) error {
	_, err := s.mem.Update(ctx, memory.ModelThread, memory.Where{
		{Field: "id", Operator: memory.OpEq, Value: threadID},
	}, memory.Row{"sandboxId": sandboxID})
	if err != nil {
		return fmt.Errorf("coordinator: persist sandbox id: %w", err)
	}
	return nil
}

func rowToThread(row memory.Row) runtypes.Thread {
	var t runtypes.Thread
	if v, ok := row["id"].(string); ok {
		t.ID = v
	}
	if v, ok := row["userId"].(string); ok {
		t.UserID = v
	}
	if v, ok := row["title"].(string); ok {
		t.Title = v
	}
	if v, ok := row["visibility"].(string); ok {
		t.Visibility = runtypes.Visibility(v)
	}
	if v, ok := row["lastContext"].(map[string]any); ok {
		t.LastContext = v
	}
	if v, ok := row["sandboxId"].(string); ok {
		t.SandboxID = v
	}
	if v, ok := row["createdAt"].(time.Time); ok {
		t.CreatedAt = v
	}
	if v, ok := row["updatedAt"].(time.Time); ok {
		t.UpdatedAt = v
	}
	return t
}
