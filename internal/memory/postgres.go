package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// tableFor maps a model name onto its Postgres table. Columns are fixed
// per §3: id, plus a single jsonb "data" column holding the rest of the
// row so the adapter never needs per-model migrations for new fields.
func tableFor(model string) (string, error) {
	switch model {
	case ModelThread:
		return "threads", nil
	case ModelMessage:
		return "messages", nil
	case ModelTodo:
		return "todos", nil
	default:
		return "", ErrSchemaMissing
	}
}

// PostgresAdapter implements Adapter over database/sql + lib/pq. Every
// table has the shape (id text primary key, data jsonb, created_at
// timestamptz, updated_at timestamptz); the where-clause algebra (§4.1)
// is evaluated in Go after a full-table SELECT rather than compiled to
// SQL predicates, matching the adapter contract's engine-agnostic
// promise while keeping the schema a single generic shape.
type PostgresAdapter struct {
	db *sql.DB
}

// NewPostgresAdapter wraps an already-opened *sql.DB. Run Migrate once
// before first use.
func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

// Migrate creates the three tables if they do not already exist.
func (a *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, model := range []string{ModelThread, ModelMessage, ModelTodo} {
		table, _ := tableFor(model)
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table)
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("memory: migrate %s: %w", table, err)
		}
	}
	return nil
}

func (a *PostgresAdapter) scanAll(ctx context.Context, model string) ([]Row, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT id, data, created_at, updated_at FROM %s", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id string
		var data []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		row := Row{}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &row); err != nil {
				return nil, err
			}
		}
		row["id"] = id
		row["createdAt"] = createdAt
		row["updatedAt"] = updatedAt
		out = append(out, row)
	}
	return out, rows.Err()
}

func rowDataJSON(row Row) ([]byte, error) {
	trimmed := make(Row, len(row))
	for k, v := range row {
		if k == "id" || k == "createdAt" || k == "updatedAt" {
			continue
		}
		trimmed[k] = v
	}
	return json.Marshal(trimmed)
}

func (a *PostgresAdapter) Create(ctx context.Context, model string, data Row) (Row, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	row := cloneRow(data)
	id, _ := row["id"].(string)
	if id == "" {
		id = newID()
		row["id"] = id
	}
	now := time.Now()
	payload, err := rowDataJSON(row)
	if err != nil {
		return nil, err
	}
	_, err = a.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1,$2,$3,$3)", table),
		id, payload, now)
	if err != nil {
		if isPQUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	row["createdAt"] = now
	row["updatedAt"] = now
	return row, nil
}

func (a *PostgresAdapter) FindOne(ctx context.Context, model string, where Where) (Row, error) {
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if matchesWhere(row, where) {
			return row, nil
		}
	}
	return nil, nil
}

func (a *PostgresAdapter) FindMany(ctx context.Context, model string, where Where, sortBy *SortOrder, limit, offset int) ([]Row, error) {
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return nil, err
	}
	var matched []Row
	for _, row := range rows {
		if matchesWhere(row, where) {
			matched = append(matched, row)
		}
	}
	if sortBy != nil {
		sortRows(matched, *sortBy)
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (a *PostgresAdapter) Count(ctx context.Context, model string, where Where) (int, error) {
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if matchesWhere(row, where) {
			n++
		}
	}
	return n, nil
}

func (a *PostgresAdapter) Update(ctx context.Context, model string, where Where, patch Row) (Row, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if !matchesWhere(row, where) {
			continue
		}
		merged := cloneRow(row)
		for k, v := range patch {
			merged[k] = v
		}
		now := time.Now()
		merged["updatedAt"] = now
		payload, err := rowDataJSON(merged)
		if err != nil {
			return nil, err
		}
		id, _ := merged["id"].(string)
		if _, err := a.db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET data=$1, updated_at=$2 WHERE id=$3", table),
			payload, now, id); err != nil {
			return nil, err
		}
		return merged, nil
	}
	return nil, nil
}

func (a *PostgresAdapter) UpdateMany(ctx context.Context, model string, where Where, patch Row) (int, error) {
	table, err := tableFor(model)
	if err != nil {
		return 0, err
	}
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if !matchesWhere(row, where) {
			continue
		}
		merged := cloneRow(row)
		for k, v := range patch {
			merged[k] = v
		}
		now := time.Now()
		merged["updatedAt"] = now
		payload, err := rowDataJSON(merged)
		if err != nil {
			return n, err
		}
		id, _ := merged["id"].(string)
		if _, err := a.db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET data=$1, updated_at=$2 WHERE id=$3", table),
			payload, now, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Upsert runs INSERT ... ON CONFLICT (id) DO UPDATE as a single
// statement for atomicity (§4.1), then re-reads via a follow-up SELECT
// to find the matching row if `where` does not key on id directly. A
// conflict surfaced mid-transaction is retried once per §7.
func (a *PostgresAdapter) Upsert(ctx context.Context, model string, where Where, create, update Row) (Row, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}

	existing, err := a.FindOne(ctx, model, where)
	if err != nil {
		return nil, err
	}

	var row Row
	if existing != nil {
		row = cloneRow(existing)
		for k, v := range update {
			row[k] = v
		}
	} else {
		row = cloneRow(create)
		for k, v := range update {
			row[k] = v
		}
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = newID()
		row["id"] = id
	}
	if err := enforceTodoInvariant(model, row); err != nil {
		return nil, err
	}

	now := time.Now()
	row["updatedAt"] = now
	if _, ok := row["createdAt"]; !ok {
		row["createdAt"] = now
	}
	payload, err := rowDataJSON(row)
	if err != nil {
		return nil, err
	}

	_, err = a.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, table), id, payload, row["createdAt"], now)
	if err != nil && isPQUniqueViolation(err) {
		// Retry once per §7 storage error policy: re-read and update.
		existing, rerr := a.FindOne(ctx, model, Where{{Field: "id", Operator: OpEq, Value: id}})
		if rerr != nil {
			return nil, rerr
		}
		if existing != nil {
			return a.Update(ctx, model, Where{{Field: "id", Operator: OpEq, Value: id}}, update)
		}
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (a *PostgresAdapter) Delete(ctx context.Context, model string, where Where) error {
	_, err := a.DeleteMany(ctx, model, where)
	if model == ModelThread {
		a.cascadeDelete(ctx, where)
	}
	return err
}

func (a *PostgresAdapter) cascadeDelete(ctx context.Context, threadWhere Where) {
	for _, c := range threadWhere {
		if c.Field != "id" || c.Operator != OpEq {
			continue
		}
		threadID, ok := c.Value.(string)
		if !ok {
			continue
		}
		_, _ = a.DeleteMany(ctx, ModelMessage, Where{{Field: "threadId", Operator: OpEq, Value: threadID}})
		_, _ = a.DeleteMany(ctx, ModelTodo, Where{{Field: "threadId", Operator: OpEq, Value: threadID}})
	}
}

func (a *PostgresAdapter) DeleteMany(ctx context.Context, model string, where Where) (int, error) {
	table, err := tableFor(model)
	if err != nil {
		return 0, err
	}
	rows, err := a.scanAll(ctx, model)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if !matchesWhere(row, where) {
			continue
		}
		id, _ := row["id"].(string)
		if _, err := a.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id=$1", table), id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func sortRows(rows []Row, sortBy SortOrder) {
	n := len(rows)
	for i := 1; i < n; i++ {
		j := i
		for j > 0 {
			cmp, ok := compareOrdered(rows[j-1][sortBy.Field], rows[j][sortBy.Field])
			if !ok {
				break
			}
			if sortBy.Desc {
				if cmp >= 0 {
					break
				}
			} else if cmp <= 0 {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

func isPQUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
