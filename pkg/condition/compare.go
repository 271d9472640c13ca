package condition

import (
	"fmt"
	"strings"

	"github.com/dukex/engageflow/pkg/models"
)

// Operator is a structured comparison operator.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
)

var expressionOperators = map[string]Operator{
	"==":       OpEq,
	"!=":       OpNeq,
	">":        OpGt,
	"<":        OpLt,
	">=":       OpGte,
	"<=":       OpLte,
	"contains": OpContains,
}

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpContains:
		return true
	default:
		return false
	}
}

// compare applies op to left and right. A nil left or right is an absent
// value: it never compares true, except neq against a present value.
func compare(op Operator, left, right any) (bool, error) {
	if !op.valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}

	if left == nil || right == nil {
		return op == OpNeq && (left != nil || right != nil), nil
	}

	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpContains:
		s, ok := left.(string)
		if !ok {
			return false, nil
		}

		return strings.Contains(s, stringify(right)), nil
	default:
		return order(op, left, right), nil
	}
}

func equal(left, right any) bool {
	ln, lok := models.ToFloat(left)
	rn, rok := models.ToFloat(right)

	if lok && rok {
		return ln == rn
	}

	return stringify(left) == stringify(right)
}

func order(op Operator, left, right any) bool {
	ln, lok := models.ToFloat(left)
	rn, rok := models.ToFloat(right)

	if !lok || !rok {
		return false
	}

	switch op {
	case OpGt:
		return ln > rn
	case OpLt:
		return ln < rn
	case OpGte:
		return ln >= rn
	case OpLte:
		return ln <= rn
	default:
		return false
	}
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}
