package visibility

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the scalar held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a scalar field value: a string, a number, or null.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text coerces the value to the string used by every comparison: null becomes "",
// numbers use their shortest decimal form ("20", "20.5", "1e+21").
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	default:
		return ""
	}
}

// Any returns the value as a plain Go value (nil, string or float64).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	default:
		return nil
	}
}

// MarshalJSON writes numbers as JSON numbers. NaN and the infinities have no JSON
// form and are written as their text.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return json.Marshal(v.Text())
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON accepts null, strings, numbers and booleans. Booleans are kept as
// their text form since conditions only ever compare text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = String(strconv.FormatBool(t))
	default:
		return fmt.Errorf("field value must be a scalar, got %s", string(data))
	}
	return nil
}

// Values maps field identifiers to their current value. Missing entries read as null.
type Values map[string]Value

// Get returns the value for field, or null when absent.
func (vs Values) Get(field string) Value {
	if vs == nil {
		return Null()
	}
	return vs[field]
}

// Clone returns an independent copy.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "Contains"
	OpDoesNotContain Operator = "DoesNotContain"
	OpStartsWith     Operator = "StartsWith"
	OpEndsWith       Operator = "EndsWith"
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT IN"
)

var knownOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpGreater: true, OpLess: true, OpGreaterOrEqual: true, OpLessOrEqual: true,
	OpContains: true, OpDoesNotContain: true, OpStartsWith: true, OpEndsWith: true,
	OpIn: true, OpNotIn: true,
}

// IsKnown reports whether the evaluator recognizes the operator. Unknown operators
// still evaluate (to true); this is used by catalog validation to warn about them.
func (o Operator) IsKnown() bool {
	return knownOperators[o]
}

// Condition compares one field's current value with a literal.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value" yaml:"value"`
}

// ConditionGroup combines its conditions with AND unless Logic contains "OR".
type ConditionGroup struct {
	ID         string      `json:"id" yaml:"id"`
	Logic      string      `json:"logic,omitempty" yaml:"logic,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// UsesOr reports whether the group combines with any-true.
func (g ConditionGroup) UsesOr() bool {
	return strings.Contains(strings.ToUpper(g.Logic), "OR")
}

// Field is anything whose visibility may be controlled by a condition group.
// An empty ConditionGroupID means always visible.
type Field struct {
	ID               string `json:"id" yaml:"id"`
	ConditionGroupID string `json:"condition_group_id,omitempty" yaml:"condition_group_id,omitempty"`
}

// formatNumber renders f the way the form runtime prints numbers: plain decimal
// between 1e-6 and 1e21, exponent form outside that range.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
