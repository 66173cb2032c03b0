package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryAdapter is the reference Adapter implementation: one
// sync.RWMutex-guarded map per model, linear scan + sort.Slice for
// findMany. It backs the conformance test kit and is suitable as a
// host's adapter for local development or tests.
type InMemoryAdapter struct {
	mu     sync.RWMutex
	tables map[string]map[string]Row
}

// NewInMemoryAdapter returns an empty adapter with one table per known
// model plus any the caller addresses later (tables are created lazily).
func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{
		tables: map[string]map[string]Row{
			ModelThread:  {},
			ModelMessage: {},
			ModelTodo:    {},
		},
	}
}

func (a *InMemoryAdapter) table(model string) map[string]Row {
	t, ok := a.tables[model]
	if !ok {
		t = map[string]Row{}
		a.tables[model] = t
	}
	return t
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (a *InMemoryAdapter) Create(ctx context.Context, model string, data Row) (Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	row := cloneRow(data)
	id, _ := row["id"].(string)
	if id == "" {
		id = newID()
		row["id"] = id
	}
	if _, exists := t[id]; exists {
		return nil, ErrConflict
	}
	now := time.Now()
	if _, ok := row["createdAt"]; !ok {
		row["createdAt"] = now
	}
	if _, ok := row["updatedAt"]; !ok {
		row["updatedAt"] = now
	}
	t[id] = row
	return cloneRow(row), nil
}

func (a *InMemoryAdapter) FindOne(ctx context.Context, model string, where Where) (Row, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, row := range a.table(model) {
		if matchesWhere(row, where) {
			return cloneRow(row), nil
		}
	}
	return nil, nil
}

func (a *InMemoryAdapter) FindMany(ctx context.Context, model string, where Where, sortBy *SortOrder, limit, offset int) ([]Row, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var rows []Row
	for _, row := range a.table(model) {
		if matchesWhere(row, where) {
			rows = append(rows, cloneRow(row))
		}
	}
	if sortBy != nil {
		sort.Slice(rows, func(i, j int) bool {
			cmp, ok := compareOrdered(rows[i][sortBy.Field], rows[j][sortBy.Field])
			if !ok {
				return false
			}
			if sortBy.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end], nil
}

func (a *InMemoryAdapter) Count(ctx context.Context, model string, where Where) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, row := range a.table(model) {
		if matchesWhere(row, where) {
			n++
		}
	}
	return n, nil
}

func (a *InMemoryAdapter) Update(ctx context.Context, model string, where Where, patch Row) (Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	for id, row := range t {
		if !matchesWhere(row, where) {
			continue
		}
		merged := cloneRow(row)
		for k, v := range patch {
			merged[k] = v
		}
		merged["updatedAt"] = time.Now()
		t[id] = merged
		return cloneRow(merged), nil
	}
	return nil, nil
}

func (a *InMemoryAdapter) UpdateMany(ctx context.Context, model string, where Where, patch Row) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	n := 0
	for id, row := range t {
		if !matchesWhere(row, where) {
			continue
		}
		merged := cloneRow(row)
		for k, v := range patch {
			merged[k] = v
		}
		merged["updatedAt"] = time.Now()
		t[id] = merged
		n++
	}
	return n, nil
}

// Upsert is atomic with respect to concurrent callers matching the same
// where because the whole read-check-write runs under a.mu.
func (a *InMemoryAdapter) Upsert(ctx context.Context, model string, where Where, create, update Row) (Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	for id, row := range t {
		if !matchesWhere(row, where) {
			continue
		}
		merged := cloneRow(row)
		for k, v := range update {
			merged[k] = v
		}
		merged["updatedAt"] = time.Now()
		if err := enforceTodoInvariant(model, merged); err != nil {
			return nil, err
		}
		t[id] = merged
		return cloneRow(merged), nil
	}

	row := cloneRow(create)
	for k, v := range update {
		row[k] = v
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = newID()
		row["id"] = id
	}
	now := time.Now()
	if _, ok := row["createdAt"]; !ok {
		row["createdAt"] = now
	}
	row["updatedAt"] = now
	if err := enforceTodoInvariant(model, row); err != nil {
		return nil, err
	}
	t[id] = row
	return cloneRow(row), nil
}

func (a *InMemoryAdapter) Delete(ctx context.Context, model string, where Where) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	for id, row := range t {
		if matchesWhere(row, where) {
			delete(t, id)
		}
	}
	if model == ModelThread {
		a.cascadeDeleteLocked(where)
	}
	return nil
}

func (a *InMemoryAdapter) DeleteMany(ctx context.Context, model string, where Where) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	n := 0
	for id, row := range t {
		if matchesWhere(row, where) {
			delete(t, id)
			n++
		}
	}
	return n, nil
}

// cascadeDeleteLocked removes messages and todos belonging to threads
// matched by where, per the Thread delete cascade (§3). Callers must
// hold a.mu.
func (a *InMemoryAdapter) cascadeDeleteLocked(threadWhere Where) {
	deletedIDs := map[string]bool{}
	for id, row := range a.table(ModelThread) {
		if matchesWhere(row, threadWhere) {
			deletedIDs[id] = true
		}
	}
	// threadWhere already matched against a now-mutated thread table
	// above in Delete; recompute against any remaining identity-by-id
	// clauses is unnecessary because Delete already removed the rows —
	// instead cascade by scanning clauses for an explicit threadId.
	for _, c := range threadWhere {
		if c.Field == "id" && c.Operator == OpEq {
			if id, ok := c.Value.(string); ok {
				deletedIDs[id] = true
			}
		}
	}
	for model, table := range a.tables {
		if model != ModelMessage && model != ModelTodo {
			continue
		}
		for rowID, row := range table {
			if tid, _ := row["threadId"].(string); tid != "" && deletedIDs[tid] {
				delete(table, rowID)
			}
		}
	}
}

// enforceTodoInvariant rejects a todo upsert that would leave more than
// one item inProgress, the defense-in-depth half of the invariant (the
// primary enforcement point is tools.TodoWrite).
func enforceTodoInvariant(model string, row Row) error {
	if model != ModelTodo {
		return nil
	}
	items, ok := row["todos"].([]any)
	if !ok {
		return nil
	}
	inProgress := 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if status, _ := m["status"].(string); status == "inProgress" {
			inProgress++
		}
	}
	if inProgress > 1 {
		return ErrTodoInvariant
	}
	return nil
}
