// Package policy evaluates the condition DSL against canonical events and
// carries out the matched policy's action: allow, block, redact, alert, or
// log.
package policy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/oisp/sensor/internal/domain/fieldpath"
)

// Op is one of the condition DSL's comparison operators.
type Op string

const (
	OpEquals     Op = "equals"
	OpNotEquals  Op = "not_equals"
	OpContains   Op = "contains"
	OpNotContain Op = "not_contains"
	OpStartsWith Op = "starts_with"
	OpEndsWith   Op = "ends_with"
	OpMatches    Op = "matches"
	OpIn         Op = "in"
	OpNotIn      Op = "not_in"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpExists     Op = "exists"
	OpNotExists  Op = "not_exists"
)

// Condition is one node of the condition tree: either a Simple field
// comparison or one of the All/Any/Not composites. Exactly one of these is
// populated, mirroring the YAML shapes a policy file declares.
type Condition struct {
	Field      string `yaml:"field,omitempty" json:"field,omitempty"`
	Op         Op     `yaml:"op,omitempty" json:"op,omitempty"`
	Value      any    `yaml:"value,omitempty" json:"value,omitempty"`
	IgnoreCase bool   `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`

	All []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty" json:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty" json:"not,omitempty"`
}

// Evaluate walks the condition tree against tree (the event's generic JSON
// form, produced by fieldpath.ToTree). Composite nodes short-circuit.
func (c Condition) Evaluate(tree any) bool {
	switch {
	case len(c.All) > 0:
		for _, child := range c.All {
			if !child.Evaluate(tree) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for _, child := range c.Any {
			if child.Evaluate(tree) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !c.Not.Evaluate(tree)
	default:
		return c.evaluateSimple(tree)
	}
}

func (c Condition) evaluateSimple(tree any) bool {
	actual, found := fieldpath.Get(tree, c.Field)
	isNull := !found || actual == nil

	switch c.Op {
	case OpExists:
		return !isNull
	case OpNotExists:
		return isNull
	}
	if isNull || c.Value == nil {
		// not_contains holds when there is no field value to contain the
		// operand, as it does below for a non-string field value.
		return isNull && c.Op == OpNotContain
	}
	return evaluateComparison(actual, c.Op, c.Value, c.IgnoreCase)
}

func evaluateComparison(actual any, op Op, expected any, ignoreCase bool) bool {
	switch op {
	case OpEquals:
		return valuesEqual(actual, expected, ignoreCase)
	case OpNotEquals:
		return !valuesEqual(actual, expected, ignoreCase)
	case OpContains:
		a, e, ok := bothStrings(actual, expected, ignoreCase)
		return ok && strings.Contains(a, e)
	case OpNotContain:
		a, e, ok := bothStrings(actual, expected, ignoreCase)
		if !ok {
			return true
		}
		return !strings.Contains(a, e)
	case OpStartsWith:
		a, e, ok := bothStrings(actual, expected, ignoreCase)
		return ok && strings.HasPrefix(a, e)
	case OpEndsWith:
		a, e, ok := bothStrings(actual, expected, ignoreCase)
		return ok && strings.HasSuffix(a, e)
	case OpMatches:
		a, ok := asString(actual)
		pattern, ok2 := asString(expected)
		if !ok || !ok2 {
			return false
		}
		if ignoreCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(a)
	case OpIn:
		return inList(actual, expected, ignoreCase)
	case OpNotIn:
		list, ok := expected.([]any)
		if !ok {
			return true
		}
		return !inList(actual, list, ignoreCase)
	case OpGt, OpGte, OpLt, OpLte:
		a, ok := asNumber(actual)
		e, ok2 := asNumber(expected)
		if !ok || !ok2 {
			return false
		}
		switch op {
		case OpGt:
			return a > e
		case OpGte:
			return a >= e
		case OpLt:
			return a < e
		default:
			return a <= e
		}
	default:
		return false
	}
}

func valuesEqual(actual, expected any, ignoreCase bool) bool {
	if ignoreCase {
		if a, ok := asString(actual); ok {
			if e, ok2 := asString(expected); ok2 {
				return strings.EqualFold(a, e)
			}
		}
	}
	if an, ok := asNumber(actual); ok {
		if en, ok2 := asNumber(expected); ok2 {
			return an == en
		}
	}
	if ab, ok := actual.(bool); ok {
		if eb, ok2 := expected.(bool); ok2 {
			return ab == eb
		}
	}
	as, aok := asString(actual)
	es, eok := asString(expected)
	return aok && eok && as == es
}

func bothStrings(actual, expected any, ignoreCase bool) (string, string, bool) {
	a, ok := asString(actual)
	e, ok2 := asString(expected)
	if !ok || !ok2 {
		return "", "", false
	}
	if ignoreCase {
		return strings.ToLower(a), strings.ToLower(e), true
	}
	return a, e, true
}

func inList(actual, expected any, ignoreCase bool) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	if n, ok := asNumber(actual); ok {
		for _, item := range list {
			if en, ok2 := asNumber(item); ok2 && en == n {
				return true
			}
		}
	}
	a, ok := asString(actual)
	if !ok {
		return false
	}
	if ignoreCase {
		a = strings.ToLower(a)
	}
	for _, item := range list {
		e, ok2 := asString(item)
		if !ok2 {
			continue
		}
		if ignoreCase {
			e = strings.ToLower(e)
		}
		if a == e {
			return true
		}
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
