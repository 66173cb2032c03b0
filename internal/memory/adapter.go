// Package memory implements the Memory Adapter: a storage-engine-agnostic
// facade over the runtime's three persisted models (thread, message, todo).
// It is the only component that touches persistent state.
package memory

import (
	"context"
	"errors"
)

// Model names recognized by the adapter.
const (
	ModelThread  = "thread"
	ModelMessage = "message"
	ModelTodo    = "todo"
)

// Errors surfaced by adapters, matching the typed failure taxonomy in the
// component contract.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrSchemaMissing = errors.New("schema missing")
	ErrFieldMissing  = errors.New("field missing")
	ErrTodoInvariant = errors.New("only one task can be inProgress")
)

// Operator is one of the comparison operators a Clause may use.
type Operator string

const (
	OpEq         Operator = "eq"
	OpIn         Operator = "in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
)

// Connector joins a Clause to the rest of a Where expression.
type Connector string

const (
	ConnAnd Connector = "AND"
	ConnOr  Connector = "OR"
)

// Clause is one predicate in a Where expression.
type Clause struct {
	Field     string
	Operator  Operator
	Value     any
	Connector Connector
}

// Where is a list of clauses. Clauses with Connector == ConnOr form one
// disjunctive group; the remaining (ConnAnd, or unset) clauses form the
// conjunctive group; the result row set is the AND of the two groups.
type Where []Clause

// Row is a single persisted record, keyed by field name. Callers type
// assert values according to the model; adapters normalize dates and
// JSON on ingress/egress so callers never see driver-specific types.
type Row map[string]any

// SortOrder controls findMany's ordering clause.
type SortOrder struct {
	Field string
	Desc  bool
}

// Adapter is the uniform CRUD+upsert facade every component depends on.
type Adapter interface {
	Create(ctx context.Context, model string, data Row) (Row, error)
	FindOne(ctx context.Context, model string, where Where) (Row, error)
	FindMany(ctx context.Context, model string, where Where, sortBy *SortOrder, limit, offset int) ([]Row, error)
	Count(ctx context.Context, model string, where Where) (int, error)
	Update(ctx context.Context, model string, where Where, patch Row) (Row, error)
	UpdateMany(ctx context.Context, model string, where Where, patch Row) (int, error)
	Upsert(ctx context.Context, model string, where Where, create, update Row) (Row, error)
	Delete(ctx context.Context, model string, where Where) error
	DeleteMany(ctx context.Context, model string, where Where) (int, error)
}

// matchesWhere evaluates a Where expression against a row using the
// AND-of-(OR-group, AND-group) rule from the component contract.
func matchesWhere(row Row, where Where) bool {
	if len(where) == 0 {
		return true
	}
	var orGroup, andGroup []Clause
	for _, c := range where {
		if c.Connector == ConnOr {
			orGroup = append(orGroup, c)
		} else {
			andGroup = append(andGroup, c)
		}
	}
	andOK := true
	for _, c := range andGroup {
		if !matchesClause(row, c) {
			andOK = false
			break
		}
	}
	if !andOK {
		return false
	}
	if len(orGroup) == 0 {
		return true
	}
	for _, c := range orGroup {
		if matchesClause(row, c) {
			return true
		}
	}
	return false
}

func matchesClause(row Row, c Clause) bool {
	actual, ok := row[c.Field]
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEq:
		return equalValues(actual, c.Value)
	case OpIn:
		vals, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range vals {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	case OpContains:
		return stringContains(actual, c.Value, func(s, sub string) bool { return stringIndex(s, sub) >= 0 })
	case OpStartsWith:
		return stringContains(actual, c.Value, hasPrefix)
	case OpEndsWith:
		return stringContains(actual, c.Value, hasSuffix)
	case OpLt:
		cmp, ok := compareOrdered(actual, c.Value)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareOrdered(actual, c.Value)
		return ok && cmp <= 0
	default:
		return false
	}
}
