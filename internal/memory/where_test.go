package memory

import "testing"

func TestMatchesWhereOpIn(t *testing.T) {
	row := Row{"status": "open"}
	where := Where{{Field: "status", Operator: OpIn, Value: []any{"open", "closed"}}}
	if !matchesWhere(row, where) {
		t.Fatal("expected match via OpIn")
	}
}

func TestMatchesWhereOpContains(t *testing.T) {
	row := Row{"title": "hello world"}
	if !matchesWhere(row, Where{{Field: "title", Operator: OpContains, Value: "world"}}) {
		t.Fatal("expected contains match")
	}
	if matchesWhere(row, Where{{Field: "title", Operator: OpContains, Value: "missing"}}) {
		t.Fatal("expected no match")
	}
}

func TestMatchesWhereOpStartsEndsWith(t *testing.T) {
	row := Row{"title": "hello world"}
	if !matchesWhere(row, Where{{Field: "title", Operator: OpStartsWith, Value: "hello"}}) {
		t.Fatal("expected prefix match")
	}
	if !matchesWhere(row, Where{{Field: "title", Operator: OpEndsWith, Value: "world"}}) {
		t.Fatal("expected suffix match")
	}
}

func TestMatchesWhereMissingFieldNeverMatches(t *testing.T) {
	row := Row{"title": "hello"}
	if matchesWhere(row, Where{{Field: "missing", Operator: OpEq, Value: "x"}}) {
		t.Fatal("expected no match against a missing field")
	}
}

func TestEqualValuesNormalizesNumericStringRepresentation(t *testing.T) {
	if !equalValues(1, "1") {
		t.Fatal("expected int/string equality normalization")
	}
}

func TestEqualValuesTreatsBothNilAsEqual(t *testing.T) {
	if !equalValues(nil, nil) {
		t.Fatal("expected nil == nil")
	}
	if equalValues(nil, "x") {
		t.Fatal("expected nil != non-nil")
	}
}

func TestCompareOrderedStrings(t *testing.T) {
	cmp, ok := compareOrdered("a", "b")
	if !ok || cmp >= 0 {
		t.Fatalf("cmp = %d, ok = %v, want negative/true", cmp, ok)
	}
}

func TestCompareOrderedMixedTypesNotComparable(t *testing.T) {
	if _, ok := compareOrdered("a", 1); ok {
		t.Fatal("expected string/int to be non-comparable")
	}
}
