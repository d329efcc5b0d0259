package matcher

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"pulsar/metrics"

	"github.com/dlclark/regexp2"
)

// Supported leaf operators
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpRegex              = "regex"
	OpIn                 = "in"
	OpExists             = "exists"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
)

// predicate tests a field value that is known to be present
type predicate func(fieldValue interface{}) bool

// compilePredicate validates the operand of op and returns its predicate
func compilePredicate(op string, value interface{}, path string, regexTimeout time.Duration) (predicate, error) {
	switch op {
	case OpExists:
		if value != nil {
			return nil, errorAt(path, ErrInvalidValue, "%s takes no value", op)
		}
		return func(interface{}) bool { return true }, nil

	case OpEquals, OpNotEquals:
		if err := requireScalar(op, value, path); err != nil {
			return nil, err
		}
		if op == OpEquals {
			return func(v interface{}) bool { return valuesEqual(v, value) }, nil
		}
		return func(v interface{}) bool { return !valuesEqual(v, value) }, nil

	case OpContains, OpStartsWith, OpEndsWith:
		operand, ok := value.(string)
		if !ok {
			return nil, errorAt(path, ErrInvalidValue, "%s requires a string value, got %T", op, value)
		}
		test := map[string]func(string, string) bool{
			OpContains:   strings.Contains,
			OpStartsWith: strings.HasPrefix,
			OpEndsWith:   strings.HasSuffix,
		}[op]
		return func(v interface{}) bool {
			str, ok := v.(string)
			return ok && test(str, operand)
		}, nil

	case OpRegex:
		pattern, ok := value.(string)
		if !ok || pattern == "" {
			return nil, errorAt(path, ErrInvalidValue, "%s requires a non-empty string pattern", op)
		}
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, errorAt(path, ErrInvalidValue, "invalid regex %q: %v", pattern, err)
		}
		re.MatchTimeout = regexTimeout
		return func(v interface{}) bool {
			str, ok := v.(string)
			if !ok {
				return false
			}
			matched, err := re.MatchString(str)
			if err != nil {
				// regexp2 only fails on timeout
				metrics.RegexTimeouts.Inc()
				return false
			}
			return matched
		}, nil

	case OpIn:
		list, ok := value.([]interface{})
		if !ok {
			return nil, errorAt(path, ErrInvalidValue, "%s requires a list value, got %T", op, value)
		}
		for i, item := range list {
			if err := requireScalar(op, item, fmt.Sprintf("%s.value[%d]", path, i)); err != nil {
				return nil, err
			}
		}
		return func(v interface{}) bool {
			for _, item := range list {
				if valuesEqual(v, item) {
					return true
				}
			}
			return false
		}, nil

	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		operand, ok := toFloat(value)
		if !ok {
			return nil, errorAt(path, ErrInvalidValue, "%s requires a numeric value, got %v", op, value)
		}
		cmp := map[string]func(a, b float64) bool{
			OpGreaterThan:        func(a, b float64) bool { return a > b },
			OpLessThan:           func(a, b float64) bool { return a < b },
			OpGreaterThanOrEqual: func(a, b float64) bool { return a >= b },
			OpLessThanOrEqual:    func(a, b float64) bool { return a <= b },
		}[op]
		return func(v interface{}) bool {
			f, ok := toFloat(v)
			return ok && cmp(f, operand)
		}, nil
	}

	return nil, errorAt(path, ErrUnknownOperator, "%q", op)
}

func requireScalar(op string, value interface{}, path string) error {
	switch value.(type) {
	case nil:
		return errorAt(path, ErrInvalidValue, "%s requires a value", op)
	case map[string]interface{}, []interface{}:
		return errorAt(path, ErrInvalidValue, "%s requires a scalar value, got %T", op, value)
	}
	return nil
}

// valuesEqual compares numbers by value regardless of their Go type and
// everything else strictly.
func valuesEqual(a, b interface{}) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

// toFloat converts numbers and numeric strings to float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		// "NaN" and "Inf" parse but are not numbers a rule can compare
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}
