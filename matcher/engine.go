// Package matcher compiles rule condition trees into an immutable matcher.
//
// A condition is a tree of all/any/not nodes over leaf comparisons:
//
//	condition:
//	  all:
//	    - field: payload.filename
//	      op: ends_with
//	      value: /nc
//	    - not:
//	        field: header.image
//	        op: starts_with
//	        value: /usr/lib/
//
// Leaves on a missing field never match, whatever the operator.
package matcher

import (
	"errors"
	"fmt"
	"time"

	"pulsar/core"
)

// DefaultRegexTimeout bounds a single regex evaluation
const DefaultRegexTimeout = 500 * time.Millisecond

type options struct {
	regexTimeout time.Duration
}

// Option configures Compile
type Option func(*options)

// WithRegexTimeout sets the match timeout applied to every regex operator
func WithRegexTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.regexTimeout = d
		}
	}
}

// Engine is a compiled rule set. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	name      string
	eventType string
	root      node
}

// Compile validates and compiles rules. Every invalid rule is reported in the
// returned error (one *RuleError each, joined); on error no Engine is built.
func Compile(rules []core.UserRule, opts ...Option) (*Engine, error) {
	o := options{regexTimeout: DefaultRegexTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	seen := make(map[string]int, len(rules))
	compiled := make([]compiledRule, 0, len(rules))

	for i, rule := range rules {
		if rule.Name == "" {
			errs = append(errs, &RuleError{Index: i, Err: ErrEmptyName})
			continue
		}
		if first, dup := seen[rule.Name]; dup {
			errs = append(errs, &RuleError{
				Rule:  rule.Name,
				Index: i,
				Err:   fmt.Errorf("%w: also defined at position %d", ErrDuplicateRule, first),
			})
			continue
		}
		seen[rule.Name] = i

		root, err := compileNode(rule.Condition, "condition", o)
		if err != nil {
			ruleErr := &RuleError{Rule: rule.Name, Index: i, Err: err}
			var ne *nodeError
			if errors.As(err, &ne) {
				ruleErr.Path = ne.path
				ruleErr.Err = ne.err
			}
			errs = append(errs, ruleErr)
			continue
		}

		compiled = append(compiled, compiledRule{
			name:      rule.Name,
			eventType: rule.Type,
			root:      root,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Engine{rules: compiled}, nil
}

// Evaluate returns the names of all rules matching event, in rule order
func (e *Engine) Evaluate(event *core.Event) []string {
	var matches []string
	for _, rule := range e.rules {
		if rule.eventType != "" && rule.eventType != event.Type {
			continue
		}
		if rule.root.eval(event) {
			matches = append(matches, rule.name)
		}
	}
	return matches
}

// Len returns the number of compiled rules
func (e *Engine) Len() int {
	return len(e.rules)
}
