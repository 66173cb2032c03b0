package memory

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryAdapterCreateAssignsID(t *testing.T) {
	a := NewInMemoryAdapter()
	row, err := a.Create(context.Background(), ModelThread, Row{"userId": "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if row["id"] == "" || row["id"] == nil {
		t.Fatal("expected generated id")
	}
	if _, ok := row["createdAt"]; !ok {
		t.Fatal("expected createdAt to be stamped")
	}
}

func TestInMemoryAdapterCreateRejectsDuplicateID(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	if _, err := a.Create(ctx, ModelThread, Row{"id": "t1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Create(ctx, ModelThread, Row{"id": "t1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestInMemoryAdapterFindOneReturnsNilOnMiss(t *testing.T) {
	a := NewInMemoryAdapter()
	row, err := a.FindOne(context.Background(), ModelThread, Where{{Field: "id", Operator: OpEq, Value: "missing"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row != nil {
		t.Fatalf("row = %v, want nil", row)
	}
}

func TestInMemoryAdapterFindManyFiltersAndSorts(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	for i, title := range []string{"c", "a", "b"} {
		if _, err := a.Create(ctx, ModelThread, Row{"id": title, "userId": "u1", "rank": i}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	rows, err := a.FindMany(ctx, ModelThread, Where{{Field: "userId", Operator: OpEq, Value: "u1"}}, &SortOrder{Field: "rank"}, 0, 0)
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	if rows[0]["id"] != "c" || rows[1]["id"] != "a" || rows[2]["id"] != "b" {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestInMemoryAdapterFindManyRespectsLimitAndOffset(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := a.Create(ctx, ModelThread, Row{"rank": i}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	rows, err := a.FindMany(ctx, ModelThread, nil, &SortOrder{Field: "rank"}, 2, 1)
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0]["rank"] != 1 || rows[1]["rank"] != 2 {
		t.Fatalf("unexpected page: %+v", rows)
	}
}

func TestInMemoryAdapterCount(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	if _, err := a.Create(ctx, ModelThread, Row{"userId": "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Create(ctx, ModelThread, Row{"userId": "u2"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := a.Count(ctx, ModelThread, Where{{Field: "userId", Operator: OpEq, Value: "u1"}})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestInMemoryAdapterUpdateMergesPatch(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	created, _ := a.Create(ctx, ModelThread, Row{"title": "old", "userId": "u1"})
	updated, err := a.Update(ctx, ModelThread, Where{{Field: "id", Operator: OpEq, Value: created["id"]}}, Row{"title": "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["title"] != "new" || updated["userId"] != "u1" {
		t.Fatalf("unexpected merge result: %+v", updated)
	}
}

func TestInMemoryAdapterUpdateNoMatchReturnsNil(t *testing.T) {
	a := NewInMemoryAdapter()
	row, err := a.Update(context.Background(), ModelThread, Where{{Field: "id", Operator: OpEq, Value: "missing"}}, Row{"title": "x"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if row != nil {
		t.Fatalf("row = %v, want nil", row)
	}
}

func TestInMemoryAdapterUpsertCreatesWhenMissing(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	row, err := a.Upsert(ctx, ModelThread, Where{{Field: "id", Operator: OpEq, Value: "t1"}}, Row{"id": "t1", "title": "seed"}, Row{"title": "updated"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row["title"] != "updated" {
		t.Fatalf("title = %v, want updated", row["title"])
	}
	n, _ := a.Count(ctx, ModelThread, nil)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestInMemoryAdapterUpsertUpdatesExisting(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	if _, err := a.Create(ctx, ModelThread, Row{"id": "t1", "title": "seed"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	row, err := a.Upsert(ctx, ModelThread, Where{{Field: "id", Operator: OpEq, Value: "t1"}}, Row{"id": "t1", "title": "seed"}, Row{"title": "updated"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row["title"] != "updated" {
		t.Fatalf("title = %v, want updated", row["title"])
	}
}

func TestInMemoryAdapterUpsertRejectsMultipleInProgressTodos(t *testing.T) {
	a := NewInMemoryAdapter()
	todos := []any{
		map[string]any{"id": "1", "status": "inProgress"},
		map[string]any{"id": "2", "status": "inProgress"},
	}
	_, err := a.Upsert(context.Background(), ModelTodo, Where{{Field: "id", Operator: OpEq, Value: "missing"}}, Row{"todos": todos}, Row{"todos": todos})
	if !errors.Is(err, ErrTodoInvariant) {
		t.Fatalf("err = %v, want ErrTodoInvariant", err)
	}
}

func TestInMemoryAdapterDeleteThreadCascadesMessagesAndTodos(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	thread, _ := a.Create(ctx, ModelThread, Row{"id": "t1"})
	if _, err := a.Create(ctx, ModelMessage, Row{"threadId": thread["id"]}); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if _, err := a.Create(ctx, ModelTodo, Row{"threadId": thread["id"]}); err != nil {
		t.Fatalf("create todo: %v", err)
	}

	if err := a.Delete(ctx, ModelThread, Where{{Field: "id", Operator: OpEq, Value: "t1"}}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	msgCount, _ := a.Count(ctx, ModelMessage, nil)
	todoCount, _ := a.Count(ctx, ModelTodo, nil)
	if msgCount != 0 || todoCount != 0 {
		t.Fatalf("expected cascade delete, got messages=%d todos=%d", msgCount, todoCount)
	}
}

func TestInMemoryAdapterDeleteManyCountsRemoved(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := a.Create(ctx, ModelMessage, Row{"threadId": "t1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := a.DeleteMany(ctx, ModelMessage, Where{{Field: "threadId", Operator: OpEq, Value: "t1"}})
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
}

func TestInMemoryAdapterUpdateManyCountsAffected(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := a.Create(ctx, ModelMessage, Row{"threadId": "t1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := a.UpdateMany(ctx, ModelMessage, Where{{Field: "threadId", Operator: OpEq, Value: "t1"}}, Row{"read": true})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestInMemoryAdapterWhereOrGroupUnionsWithAndGroup(t *testing.T) {
	a := NewInMemoryAdapter()
	ctx := context.Background()
	if _, err := a.Create(ctx, ModelThread, Row{"id": "t1", "userId": "u1", "visibility": "private"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	where := Where{
		{Field: "id", Operator: OpEq, Value: "t1"},
		{Field: "visibility", Operator: OpEq, Value: "public", Connector: ConnOr},
		{Field: "userId", Operator: OpEq, Value: "u1", Connector: ConnOr},
	}
	row, err := a.FindOne(ctx, ModelThread, where)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row == nil {
		t.Fatal("expected a match via the userId OR clause")
	}
}
