package executor

import (
	"fmt"
	"strconv"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/template"
)

// evaluateRule resolves the rule's input path in the result map and compares
// it against the rule's value. When both operands parse as numbers the
// comparison is numeric, otherwise lexicographic — so "=" and "!=" behave
// loosely across numeric-string boundaries ("5" = 5 is true). An
// unresolvable input compares as "absent": nothing equals a missing value,
// so only "!=" holds.
func evaluateRule(rule models.Rule, results map[string]any) bool {
	resolved, ok := template.Lookup(results, rule.Input)
	if !ok {
		return rule.Operator == models.OpNotEqual
	}

	left := coerceString(resolved)
	right := coerceString(rule.Value)

	leftNum, leftErr := strconv.ParseFloat(left, 64)
	rightNum, rightErr := strconv.ParseFloat(right, 64)

	if leftErr == nil && rightErr == nil {
		return compareNumbers(leftNum, rightNum, rule.Operator)
	}

	return compareStrings(left, right, rule.Operator)
}

// evaluateLogic combines the step's rules: AND requires all true, OR any.
func evaluateLogic(step *models.LogicStep, results map[string]any) bool {
	if step.Mode == models.LogicOr {
		for _, rule := range step.Conditions {
			if evaluateRule(rule, results) {
				return true
			}
		}

		return false
	}

	for _, rule := range step.Conditions {
		if !evaluateRule(rule, results) {
			return false
		}
	}

	return true
}

func compareNumbers(left, right float64, op models.Operator) bool {
	switch op {
	case models.OpEqual:
		return left == right
	case models.OpNotEqual:
		return left != right
	case models.OpLess:
		return left < right
	case models.OpGreater:
		return left > right
	case models.OpLessEqual:
		return left <= right
	case models.OpGreaterEqual:
		return left >= right
	default:
		return false
	}
}

func compareStrings(left, right string, op models.Operator) bool {
	switch op {
	case models.OpEqual:
		return left == right
	case models.OpNotEqual:
		return left != right
	case models.OpLess:
		return left < right
	case models.OpGreater:
		return left > right
	case models.OpLessEqual:
		return left <= right
	case models.OpGreaterEqual:
		return left >= right
	default:
		return false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
