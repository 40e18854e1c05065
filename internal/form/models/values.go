package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"intake/internal/visibility"
	dErrors "intake/pkg/domain-errors"
)

// NormalizeValue converts raw input for field into the stored scalar.
//
//   - numeric types: numbers are kept, strings are parsed leniently, blank or
//     unparsable input becomes null
//   - Multipicklist: a list is joined with ';', an empty list becomes null
//   - everything else is stored as text
//
// raw is a decoded JSON value (nil, string, float64, bool or []any).
func NormalizeValue(field FormField, raw any) (visibility.Value, error) {
	if raw == nil {
		return visibility.Null(), nil
	}

	switch t := field.EffectiveType(); {
	case t.IsNumeric():
		return normalizeNumber(raw)
	case t == FieldTypeMultipicklist:
		return normalizeMultipicklist(raw)
	default:
		return normalizeText(raw)
	}
}

func normalizeNumber(raw any) (visibility.Value, error) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return visibility.Null(), nil
		}
		return visibility.Number(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return visibility.Null(), nil
		}
		if f, ok := visibility.ParseNumber(v); ok {
			return visibility.Number(f), nil
		}
		return visibility.Null(), nil
	case bool:
		return visibility.Null(), nil
	default:
		return visibility.Value{}, dErrors.New(dErrors.CodeValidation, "numeric field expects a number")
	}
}

func normalizeMultipicklist(raw any) (visibility.Value, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return visibility.Null(), nil
		}
		return visibility.String(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return visibility.Value{}, dErrors.New(dErrors.CodeValidation, "multipicklist entries must be strings")
			}
			parts = append(parts, s)
		}
		if len(parts) == 0 {
			return visibility.Null(), nil
		}
		return visibility.String(strings.Join(parts, ";")), nil
	case []string:
		if len(v) == 0 {
			return visibility.Null(), nil
		}
		return visibility.String(strings.Join(v, ";")), nil
	default:
		return visibility.Value{}, dErrors.New(dErrors.CodeValidation, "multipicklist field expects a list of strings")
	}
}

func normalizeText(raw any) (visibility.Value, error) {
	switch v := raw.(type) {
	case string:
		return visibility.String(v), nil
	case float64:
		return visibility.Number(v), nil
	case bool:
		return visibility.String(strconv.FormatBool(v)), nil
	default:
		return visibility.Value{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported value of type %T", raw))
	}
}

// MultipicklistSelection splits a stored multipicklist value back into its entries.
func MultipicklistSelection(v visibility.Value) []string {
	var out []string
	for _, s := range strings.Split(v.Text(), ";") {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
