package detect

import (
	"errors"
	"fmt"
)

// Sentinels matching the typed load errors through errors.Is
var (
	ErrRuleListing = errors.New("rule listing failed")
	ErrRuleLoading = errors.New("rule loading failed")
	ErrRuleParsing = errors.New("rule parsing failed")
	ErrRuleCompile = errors.New("rule compilation failed")

	errNilMatcher = errors.New("compiler returned no matcher")
)

// RuleListingError is returned when the rule file pattern itself is invalid
type RuleListingError struct {
	Pattern string
	Err     error
}

func (e *RuleListingError) Error() string {
	return fmt.Sprintf("error listing rules: %v", e.Err)
}

func (e *RuleListingError) Unwrap() error {
	return e.Err
}

// Is matches ErrRuleListing
func (e *RuleListingError) Is(target error) bool {
	return target == ErrRuleListing
}

// RuleLoadingError is returned when a discovered rule file cannot be read.
// Name is the path of the file.
type RuleLoadingError struct {
	Name string
	Err  error
}

func (e *RuleLoadingError) Error() string {
	return fmt.Sprintf("error reading rule: %s", e.Name)
}

func (e *RuleLoadingError) Unwrap() error {
	return e.Err
}

// Is matches ErrRuleLoading
func (e *RuleLoadingError) Is(target error) bool {
	return target == ErrRuleLoading
}

// RuleParsingError is returned when a rule file is not a valid list of rules
type RuleParsingError struct {
	Filename string
	Err      error
}

func (e *RuleParsingError) Error() string {
	return fmt.Sprintf("error parsing rule file: %s", e.Filename)
}

func (e *RuleParsingError) Unwrap() error {
	return e.Err
}

// Is matches ErrRuleParsing
func (e *RuleParsingError) Is(target error) bool {
	return target == ErrRuleParsing
}

// RuleCompileError is returned when the rule set as a whole fails to compile
type RuleCompileError struct {
	Err error
}

func (e *RuleCompileError) Error() string {
	return fmt.Sprintf("error compiling rules: %v", e.Err)
}

func (e *RuleCompileError) Unwrap() error {
	return e.Err
}

// Is matches ErrRuleCompile
func (e *RuleCompileError) Is(target error) bool {
	return target == ErrRuleCompile
}
