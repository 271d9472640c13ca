package condition

import (
	"fmt"
	"strconv"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/expr-lang/expr/ast"
)

// The expression grammar is a strict subset of what the expr parser accepts:
// literals, dotted context paths, unary !/not/-/+, the boolean connectives
// &&/and and ||/or, and the comparisons == != > < >= <= contains. Anything
// else (calls, builtins, closures, pipes, ranges, ...) is rejected before
// evaluation.

func check(node ast.Node) error {
	switch n := node.(type) {
	case *ast.NilNode, *ast.BoolNode, *ast.StringNode, *ast.IntegerNode, *ast.FloatNode, *ast.ConstantNode:
		return nil
	case *ast.IdentifierNode, *ast.MemberNode:
		_, err := pathOf(node)

		return err
	case *ast.ChainNode:
		return check(n.Node)
	case *ast.UnaryNode:
		switch n.Operator {
		case "!", "not", "-", "+":
			return check(n.Node)
		default:
			return fmt.Errorf("%w: unary operator %q", ErrUnsupportedSyntax, n.Operator)
		}
	case *ast.BinaryNode:
		if !isLogical(n.Operator) {
			if _, ok := expressionOperators[n.Operator]; !ok {
				return fmt.Errorf("%w: operator %q", ErrUnsupportedSyntax, n.Operator)
			}
		}

		err := check(n.Left)
		if err != nil {
			return err
		}

		return check(n.Right)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedSyntax, node)
	}
}

func isLogical(operator string) bool {
	switch operator {
	case "&&", "and", "||", "or":
		return true
	default:
		return false
	}
}

// pathOf flattens identifier and member access nodes into a dotted path.
func pathOf(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, nil
	case *ast.ChainNode:
		return pathOf(n.Node)
	case *ast.MemberNode:
		base, err := pathOf(n.Node)
		if err != nil {
			return "", err
		}

		switch property := n.Property.(type) {
		case *ast.StringNode:
			return base + "." + property.Value, nil
		case *ast.IntegerNode:
			return base + "." + strconv.Itoa(property.Value), nil
		default:
			return "", fmt.Errorf("%w: computed member access", ErrUnsupportedSyntax)
		}
	default:
		return "", fmt.Errorf("%w: %T in path", ErrUnsupportedSyntax, node)
	}
}

func eval(node ast.Node, rc models.Context) (any, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return nil, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return n.Value, nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.ConstantNode:
		return n.Value, nil
	case *ast.IdentifierNode, *ast.MemberNode:
		path, err := pathOf(node)
		if err != nil {
			return nil, err
		}

		value, _ := rc.Lookup(path)

		return value, nil
	case *ast.ChainNode:
		return eval(n.Node, rc)
	case *ast.UnaryNode:
		return evalUnary(n, rc)
	case *ast.BinaryNode:
		return evalBinary(n, rc)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSyntax, node)
	}
}

func evalUnary(n *ast.UnaryNode, rc models.Context) (any, error) {
	value, err := eval(n.Node, rc)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!", "not":
		b, err := truthy(value)
		if err != nil {
			return nil, err
		}

		return !b, nil
	case "-", "+":
		if value == nil {
			return nil, nil
		}

		num, ok := models.ToFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNonNumericNegation, value)
		}

		if n.Operator == "-" {
			return -num, nil
		}

		return num, nil
	default:
		return nil, fmt.Errorf("%w: unary operator %q", ErrUnsupportedSyntax, n.Operator)
	}
}

func evalBinary(n *ast.BinaryNode, rc models.Context) (any, error) {
	switch n.Operator {
	case "&&", "and":
		return evalLogical(n, rc, false)
	case "||", "or":
		return evalLogical(n, rc, true)
	}

	op, ok := expressionOperators[n.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedSyntax, n.Operator)
	}

	left, err := eval(n.Left, rc)
	if err != nil {
		return nil, err
	}

	right, err := eval(n.Right, rc)
	if err != nil {
		return nil, err
	}

	return compare(op, left, right)
}

// evalLogical short-circuits: for || a true left side wins, for && a false
// left side wins.
func evalLogical(n *ast.BinaryNode, rc models.Context, stopOn bool) (any, error) {
	left, err := eval(n.Left, rc)
	if err != nil {
		return nil, err
	}

	lb, err := truthy(left)
	if err != nil {
		return nil, err
	}

	if lb == stopOn {
		return stopOn, nil
	}

	right, err := eval(n.Right, rc)
	if err != nil {
		return nil, err
	}

	return truthy(right)
}

func truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrNonBooleanOperand, value)
	}
}
