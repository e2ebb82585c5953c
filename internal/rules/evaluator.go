package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Resolve walks a dotted path through nested maps and slices. Any missing
// or non-traversable segment reports found=false.
func Resolve(ctx map[string]any, path string) (value any, found bool) {
	if ctx == nil || path == "" {
		return nil, false
	}

	var current any = ctx
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}

		switch node := current.(type) {
		case map[string]any:
			current, found = node[segment]
		case map[string]string:
			current, found = node[segment]
		case []any:
			current, found = index(node, segment)
		case []string:
			var s string
			s, found = indexString(node, segment)
			current = s
		default:
			return nil, false
		}

		if !found {
			return nil, false
		}
	}

	return current, true
}

// Evaluate reports whether a single condition holds for ctx. It never panics
// and treats unresolvable fields as absent.
func Evaluate(cond Condition, ctx map[string]any) bool {
	actual, found := Resolve(ctx, cond.Field)
	present := found && actual != nil

	switch cond.Operator {
	case OpEquals:
		return found && strictEqual(actual, cond.Value)
	case OpNotEquals:
		return !(found && strictEqual(actual, cond.Value))
	case OpGreaterThan:
		return compare(actual, found, cond.Value, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compare(actual, found, cond.Value, func(a, b float64) bool { return a < b })
	case OpGreaterThanOrEqual:
		return compare(actual, found, cond.Value, func(a, b float64) bool { return a >= b })
	case OpLessThanOrEqual:
		return compare(actual, found, cond.Value, func(a, b float64) bool { return a <= b })
	case OpContains:
		return present && strings.Contains(stringify(actual), cond.Value.String())
	case OpNotContains:
		return present && !strings.Contains(stringify(actual), cond.Value.String())
	case OpExists:
		return present
	case OpNotExists:
		return !present
	default:
		return false
	}
}

// EvaluateAll aggregates conditions with AND for LogicAll and OR for
// LogicAny. An empty list is true; unknown logic is treated as LogicAll.
func EvaluateAll(conds []Condition, logic ConditionLogic, ctx map[string]any) bool {
	if len(conds) == 0 {
		return true
	}

	if logic == LogicAny {
		for _, c := range conds {
			if Evaluate(c, ctx) {
				return true
			}
		}
		return false
	}

	for _, c := range conds {
		if !Evaluate(c, ctx) {
			return false
		}
	}
	return true
}

type ConditionOutcome struct {
	Condition Condition `json:"condition"`
	Actual    any       `json:"actual"`
	Present   bool      `json:"present"`
	Matched   bool      `json:"matched"`
}

// Explain evaluates every condition individually, for dry runs.
func Explain(conds []Condition, logic ConditionLogic, ctx map[string]any) (bool, []ConditionOutcome) {
	outcomes := make([]ConditionOutcome, 0, len(conds))
	for _, c := range conds {
		actual, found := Resolve(ctx, c.Field)
		outcomes = append(outcomes, ConditionOutcome{
			Condition: c,
			Actual:    actual,
			Present:   found && actual != nil,
			Matched:   Evaluate(c, ctx),
		})
	}
	return EvaluateAll(conds, logic, ctx), outcomes
}

func strictEqual(actual any, expected Value) bool {
	switch expected.Kind() {
	case KindNull:
		return actual == nil
	case KindString:
		s, ok := actual.(string)
		return ok && s == expected.str
	case KindBool:
		b, ok := actual.(bool)
		return ok && b == expected.b
	case KindNumber:
		f, ok := toFloat(actual)
		return ok && f == expected.num
	default:
		return false
	}
}

func compare(actual any, found bool, expected Value, cmp func(a, b float64) bool) bool {
	left := math.NaN()
	if found {
		left = coerceNumber(actual)
	}
	right := expected.Number()
	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}
	return cmp(left, right)
}

func coerceNumber(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return parseNumber(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return float64(x.UnixMilli())
	default:
		return math.NaN()
	}
}

func stringify(v any) string {
	if f, ok := toFloat(v); ok {
		return formatNumber(f)
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

func index(items []any, segment string) (any, bool) {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 || i >= len(items) {
		return nil, false
	}
	return items[i], true
}

func indexString(items []string, segment string) (string, bool) {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 || i >= len(items) {
		return "", false
	}
	return items[i], true
}

// Stringify renders a context value the way contains/not_contains see it.
func Stringify(v any) string {
	return stringify(v)
}
