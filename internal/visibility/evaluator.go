// Package visibility decides which form fields are shown for a given set of field values.
//
// Evaluation is pure: it reads a Values snapshot and a list of condition groups and
// never mutates either. Every missing or unrecognized input resolves to "visible".
package visibility

import (
	"slices"
	"strings"
)

// IsVisible reports whether field should be shown. A field without a group
// reference, with a reference to an unknown group, or whose group has no
// conditions is visible.
func IsVisible(field Field, groups []ConditionGroup, values Values) bool {
	if field.ConditionGroupID == "" {
		return true
	}
	idx := slices.IndexFunc(groups, func(g ConditionGroup) bool {
		return g.ID == field.ConditionGroupID
	})
	if idx < 0 {
		return true
	}
	return EvaluateGroup(groups[idx], values)
}

// EvaluateGroup evaluates every condition of group and combines the results with OR
// when the logic string contains "OR", with AND otherwise. An empty group is visible.
func EvaluateGroup(group ConditionGroup, values Values) bool {
	if len(group.Conditions) == 0 {
		return true
	}
	results := make([]bool, len(group.Conditions))
	for i, c := range group.Conditions {
		results[i] = EvaluateCondition(c, values)
	}
	if group.UsesOr() {
		return slices.Contains(results, true)
	}
	return !slices.Contains(results, false)
}

// EvaluateCondition applies the condition's operator to the field's current value.
// Unrecognized operators evaluate to true.
func EvaluateCondition(c Condition, values Values) bool {
	actual := values.Get(c.Field).Text()
	expected := c.Value

	switch c.Operator {
	case OpEqual:
		return actual == expected
	case OpNotEqual:
		return actual != expected
	case OpGreater:
		return compareValues(actual, expected) > 0
	case OpLess:
		return compareValues(actual, expected) < 0
	case OpGreaterOrEqual:
		return compareValues(actual, expected) >= 0
	case OpLessOrEqual:
		return compareValues(actual, expected) <= 0
	case OpContains:
		return strings.Contains(actual, expected)
	case OpDoesNotContain:
		return !strings.Contains(actual, expected)
	case OpStartsWith:
		return strings.HasPrefix(actual, expected)
	case OpEndsWith:
		return strings.HasSuffix(actual, expected)
	case OpIn:
		return slices.Contains(splitList(expected), actual)
	case OpNotIn:
		return !slices.Contains(splitList(expected), actual)
	default:
		return true
	}
}

// Evaluator indexes condition groups by ID for repeated evaluation passes over the
// same form. When IDs repeat, the first group wins. It holds no values and is safe
// for concurrent use.
type Evaluator struct {
	groups map[string]ConditionGroup
}

// NewEvaluator builds an evaluator over groups.
func NewEvaluator(groups []ConditionGroup) *Evaluator {
	index := make(map[string]ConditionGroup, len(groups))
	for _, g := range groups {
		if _, seen := index[g.ID]; !seen {
			index[g.ID] = g
		}
	}
	return &Evaluator{groups: index}
}

// Group returns the indexed group with the given ID.
func (e *Evaluator) Group(id string) (ConditionGroup, bool) {
	g, ok := e.groups[id]
	return g, ok
}

// IsVisible is the indexed equivalent of the package-level IsVisible.
func (e *Evaluator) IsVisible(field Field, values Values) bool {
	if field.ConditionGroupID == "" {
		return true
	}
	g, ok := e.groups[field.ConditionGroupID]
	if !ok {
		return true
	}
	return EvaluateGroup(g, values)
}

// Visibility runs a full pass over fields and returns visibility keyed by field ID.
func (e *Evaluator) Visibility(fields []Field, values Values) map[string]bool {
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f.ID] = e.IsVisible(f, values)
	}
	return out
}

// Filter returns the elements of items whose field is visible, preserving order.
func Filter[T any](e *Evaluator, items []T, field func(T) Field, values Values) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if e.IsVisible(field(item), values) {
			out = append(out, item)
		}
	}
	return out
}
