package service

import (
	"fmt"
	"sync"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/automaton-hq/automaton/internal/domain/params"
)

// JMESPathEvaluator implements core.ConditionEvaluator using go-jmespath.
// Rule conditions are JMESPath expressions evaluated against the event
// document an agent poll produced; a truthy result fires the rule's target.
// Compiled expressions are cached, so a rule's condition compiles once no
// matter how many events it sees.
type JMESPathEvaluator struct {
	mu    sync.RWMutex
	cache map[string]jmespath.JMESPath
}

// NewJMESPathEvaluator constructs a JMESPathEvaluator.
func NewJMESPathEvaluator() *JMESPathEvaluator {
	return &JMESPathEvaluator{cache: make(map[string]jmespath.JMESPath)}
}

// Validate checks that the expression compiles. An empty expression is valid
// and means the rule fires on every event.
func (e *JMESPathEvaluator) Validate(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := e.compiled(expr); err != nil {
		return fmt.Errorf("compile expression: %w", err)
	}
	return nil
}

// Evaluate applies the expression to the event and reports whether the result
// is truthy. JMESPath treats null, false, empty strings, and empty collections
// as falsy; everything else fires.
func (e *JMESPathEvaluator) Evaluate(expr string, event params.Map) (bool, error) {
	if expr == "" {
		return true, nil
	}

	jp, err := e.compiled(expr)
	if err != nil {
		return false, fmt.Errorf("compile expression: %w", err)
	}
	result, err := jp.Search(map[string]any(event))
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	return isTruthy(result), nil
}

func (e *JMESPathEvaluator) compiled(expr string) (jmespath.JMESPath, error) {
	e.mu.RLock()
	jp, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return jp, nil
	}

	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[expr] = jp
	e.mu.Unlock()
	return jp, nil
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		// numbers are truthy regardless of value, matching JMESPath semantics
		return true
	}
}
