package detect

import (
	"time"

	"pulsar/core"
	"pulsar/matcher"
)

// Matcher is a compiled, immutable rule set. Evaluate must be safe for
// concurrent use and returns the names of every rule matching the event.
type Matcher interface {
	Evaluate(event *core.Event) []string
}

// Compiler turns the complete list of rule definitions into a Matcher.
// Compilation is all or nothing: any invalid rule fails the whole set.
type Compiler interface {
	Compile(rules []core.UserRule) (Matcher, error)
}

// CompilerFunc adapts a function to the Compiler interface
type CompilerFunc func(rules []core.UserRule) (Matcher, error)

// Compile calls f(rules)
func (f CompilerFunc) Compile(rules []core.UserRule) (Matcher, error) {
	return f(rules)
}

// NewConditionCompiler returns the default Compiler backed by the matcher
// package. regexTimeout bounds every regex evaluation; zero keeps the
// matcher default.
func NewConditionCompiler(regexTimeout time.Duration) Compiler {
	var opts []matcher.Option
	if regexTimeout > 0 {
		opts = append(opts, matcher.WithRegexTimeout(regexTimeout))
	}

	return CompilerFunc(func(rules []core.UserRule) (Matcher, error) {
		engine, err := matcher.Compile(rules, opts...)
		if err != nil {
			return nil, err
		}
		return engine, nil
	})
}

// compileRules hands the full rule list to the compiler and wraps failures
func compileRules(compiler Compiler, rules []core.UserRule) (Matcher, error) {
	m, err := compiler.Compile(rules)
	if err != nil {
		return nil, &RuleCompileError{Err: err}
	}
	if m == nil {
		return nil, &RuleCompileError{Err: errNilMatcher}
	}
	return m, nil
}
