package metaindex

import "testing"

func TestEvaluateEq(t *testing.T) {
	meta := map[string]any{"type": "Person", "age": float64(30)}
	if !Evaluate(Eq("type", "Person"), meta) {
		t.Fatal("expected eq match")
	}
	if Evaluate(Eq("type", "Organization"), meta) {
		t.Fatal("expected eq mismatch")
	}
}

func TestEvaluateNumericComparisons(t *testing.T) {
	meta := map[string]any{"age": float64(30)}
	if !Evaluate(Gt("age", float64(20)), meta) {
		t.Fatal("expected gt match")
	}
	if !Evaluate(Le("age", float64(30)), meta) {
		t.Fatal("expected le match")
	}
	if Evaluate(Lt("age", float64(30)), meta) {
		t.Fatal("expected lt mismatch")
	}
}

func TestEvaluateContainsAndStartsWith(t *testing.T) {
	meta := map[string]any{"name": "Ada Lovelace"}
	if !Evaluate(Contains("name", "Love"), meta) {
		t.Fatal("expected contains match")
	}
	if !Evaluate(StartsWith("name", "Ada"), meta) {
		t.Fatal("expected startsWith match")
	}
	if Evaluate(StartsWith("name", "Bob"), meta) {
		t.Fatal("expected startsWith mismatch")
	}
}

func TestEvaluateDottedPath(t *testing.T) {
	meta := map[string]any{"address": map[string]any{"city": "Boston"}}
	if !Evaluate(Eq("address.city", "Boston"), meta) {
		t.Fatal("expected dotted path match")
	}
}

func TestEvaluateAndOr(t *testing.T) {
	meta := map[string]any{"type": "Person", "age": float64(30)}
	if !Evaluate(And(Eq("type", "Person"), Ge("age", float64(18))), meta) {
		t.Fatal("expected and to match")
	}
	if Evaluate(And(Eq("type", "Person"), Gt("age", float64(99))), meta) {
		t.Fatal("expected and to fail")
	}
	if !Evaluate(Or(Eq("type", "Organization"), Eq("type", "Person")), meta) {
		t.Fatal("expected or to match")
	}
}

func TestEvaluateMissingFieldNotEqualIsTrue(t *testing.T) {
	meta := map[string]any{}
	if !Evaluate(Ne("missing", "x"), meta) {
		t.Fatal("expected ne on missing field to be true")
	}
	if Evaluate(Eq("missing", "x"), meta) {
		t.Fatal("expected eq on missing field to be false")
	}
}
