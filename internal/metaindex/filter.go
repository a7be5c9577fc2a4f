// Package metaindex implements the composable metadata filter grammar
// and secondary index described in §4.D: a generalization of the
// teacher's FilterExpression tree (pkg/core/advanced_filter.go), trimmed
// to eq/ne/gt/lt/ge/le/contains/startsWith plus and/or, with dotted
// nested-path field access instead of a flat metadata map.
package metaindex

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator names one node of a filter tree.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpLt         Operator = "lt"
	OpGe         Operator = "ge"
	OpLe         Operator = "le"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpAnd        Operator = "and"
	OpOr         Operator = "or"
)

// Filter is one node of a composable filter expression. Leaf nodes
// (eq/ne/gt/lt/ge/le/contains/startsWith) carry Field and Value;
// combinator nodes (and/or) carry Children.
type Filter struct {
	Operator Operator
	Field    string
	Value    any
	Children []*Filter
}

// Eq builds a leaf equality filter.
func Eq(field string, value any) *Filter { return &Filter{Operator: OpEq, Field: field, Value: value} }

// Ne builds a leaf inequality filter.
func Ne(field string, value any) *Filter { return &Filter{Operator: OpNe, Field: field, Value: value} }

// Gt builds a leaf greater-than filter.
func Gt(field string, value any) *Filter { return &Filter{Operator: OpGt, Field: field, Value: value} }

// Lt builds a leaf less-than filter.
func Lt(field string, value any) *Filter { return &Filter{Operator: OpLt, Field: field, Value: value} }

// Ge builds a leaf greater-than-or-equal filter.
func Ge(field string, value any) *Filter { return &Filter{Operator: OpGe, Field: field, Value: value} }

// Le builds a leaf less-than-or-equal filter.
func Le(field string, value any) *Filter { return &Filter{Operator: OpLe, Field: field, Value: value} }

// Contains builds a leaf substring-containment filter (strings only).
func Contains(field string, value any) *Filter {
	return &Filter{Operator: OpContains, Field: field, Value: value}
}

// StartsWith builds a leaf prefix filter (strings only).
func StartsWith(field string, value any) *Filter {
	return &Filter{Operator: OpStartsWith, Field: field, Value: value}
}

// And combines filters, all of which must hold.
func And(children ...*Filter) *Filter { return &Filter{Operator: OpAnd, Children: children} }

// Or combines filters, any of which may hold.
func Or(children ...*Filter) *Filter { return &Filter{Operator: OpOr, Children: children} }

// Evaluate walks f against metadata, resolving dotted field paths
// (e.g. "address.city") through nested maps.
func Evaluate(f *Filter, metadata map[string]any) bool {
	if f == nil {
		return true
	}
	switch f.Operator {
	case OpAnd:
		for _, c := range f.Children {
			if !Evaluate(c, metadata) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if Evaluate(c, metadata) {
				return true
			}
		}
		return len(f.Children) == 0
	default:
		val, ok := lookupPath(metadata, f.Field)
		if !ok {
			return f.Operator == OpNe
		}
		return compare(f.Operator, val, f.Value)
	}
}

func lookupPath(metadata map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var cur any = metadata
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func compare(op Operator, a, b any) bool {
	switch op {
	case OpEq:
		return equalValues(a, b)
	case OpNe:
		return !equalValues(a, b)
	case OpContains:
		as, aok := a.(string)
		bs, bok := b.(string)
		return aok && bok && strings.Contains(as, bs)
	case OpStartsWith:
		as, aok := a.(string)
		bs, bok := b.(string)
		return aok && bok && strings.HasPrefix(as, bs)
	}

	af, aIsNum := toFloat64(a)
	bf, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		switch op {
		case OpGt:
			return af > bf
		case OpLt:
			return af < bf
		case OpGe:
			return af >= bf
		case OpLe:
			return af <= bf
		}
	}

	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch op {
	case OpGt:
		return as > bs
	case OpLt:
		return as < bs
	case OpGe:
		return as >= bs
	case OpLe:
		return as <= bs
	}
	return false
}

func equalValues(a, b any) bool {
	af, aIsNum := toFloat64(a)
	bf, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
