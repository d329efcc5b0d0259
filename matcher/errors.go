package matcher

import (
	"errors"
	"fmt"
)

// Compile error causes, matched through errors.Is on a *RuleError
var (
	ErrEmptyName        = errors.New("rule name is empty")
	ErrDuplicateRule    = errors.New("duplicate rule name")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrUnknownOperator  = errors.New("unknown operator")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidValue     = errors.New("invalid value")
)

// RuleError describes why a single rule failed to compile.
// Path locates the offending node inside the rule, e.g. "condition.all[1]".
type RuleError struct {
	Rule  string
	Index int
	Path  string
	Err   error
}

func (e *RuleError) Error() string {
	name := e.Rule
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	if e.Path == "" {
		return fmt.Sprintf("rule %q: %v", name, e.Err)
	}
	return fmt.Sprintf("rule %q: %s: %v", name, e.Path, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// nodeError carries the node path up to the rule level
type nodeError struct {
	path string
	err  error
}

func (e *nodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.path, e.err)
}

func (e *nodeError) Unwrap() error {
	return e.err
}

func errorAt(path string, cause error, format string, args ...interface{}) error {
	return &nodeError{path: path, err: fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))}
}
