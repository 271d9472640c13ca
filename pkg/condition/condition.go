// Package condition evaluates workflow condition steps against a run context,
// either as a structured field/operator/value comparison or as a sandboxed
// boolean expression.
package condition

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var (
	ErrInvalidCondition   = errors.New("invalid condition")
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrUnsupportedSyntax  = errors.New("unsupported expression syntax")
	ErrUnknownOperator    = errors.New("unknown operator")
	ErrNonBooleanOperand  = errors.New("operand is not a boolean")
	ErrNonNumericNegation = errors.New("cannot negate a non-numeric value")
)

// Evaluator evaluates conditions. Parsed expressions are cached, so one
// Evaluator should be shared across runs.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]ast.Node
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]ast.Node)}
}

// Evaluate returns the truth value of cfg against rc. A non-empty expression
// takes precedence over the structured field/operator/value triple.
func (e *Evaluator) Evaluate(rc models.Context, cfg models.ConditionConfig) (bool, error) {
	if strings.TrimSpace(cfg.Expression) != "" {
		return e.EvaluateExpression(rc, cfg.Expression)
	}

	if cfg.Field == "" {
		return false, fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}

	left, _ := rc.Lookup(cfg.Field)

	return compare(Operator(cfg.Operator), left, cfg.Value)
}

// EvaluateExpression parses (or reuses) expression and evaluates it.
func (e *Evaluator) EvaluateExpression(rc models.Context, expression string) (bool, error) {
	node, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	value, err := eval(node, rc)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}

	return truthy(value)
}

// Validate checks a condition config without evaluating it.
func (e *Evaluator) Validate(cfg models.ConditionConfig) error {
	if strings.TrimSpace(cfg.Expression) != "" {
		_, err := e.compile(cfg.Expression)

		return err
	}

	if cfg.Field == "" {
		return fmt.Errorf("%w: field or expression is required", ErrInvalidCondition)
	}

	if !Operator(cfg.Operator).valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidCondition, ErrUnknownOperator, cfg.Operator)
	}

	return nil
}

// Compile parses expression and rejects any syntax outside the supported
// grammar.
func Compile(expression string) error {
	_, err := parse(expression)

	return err
}

func (e *Evaluator) compile(expression string) (ast.Node, error) {
	key := strings.TrimSpace(expression)

	e.mu.RLock()
	node, ok := e.cache[key]
	e.mu.RUnlock()

	if ok {
		return node, nil
	}

	node, err := parse(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = node
	e.mu.Unlock()

	return node, nil
}

func parse(expression string) (ast.Node, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}

	err = check(tree.Node)
	if err != nil {
		return nil, err
	}

	return tree.Node, nil
}
