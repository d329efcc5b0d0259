package matcher

import (
	"fmt"

	"pulsar/core"
)

type node interface {
	eval(event *core.Event) bool
}

type allNode []node

func (n allNode) eval(event *core.Event) bool {
	for _, child := range n {
		if !child.eval(event) {
			return false
		}
	}
	return true
}

type anyNode []node

func (n anyNode) eval(event *core.Event) bool {
	for _, child := range n {
		if child.eval(event) {
			return true
		}
	}
	return false
}

type notNode struct {
	child node
}

func (n notNode) eval(event *core.Event) bool {
	return !n.child.eval(event)
}

type leafNode struct {
	field accessor
	test  predicate
}

func (n leafNode) eval(event *core.Event) bool {
	v, ok := n.field(event)
	if !ok {
		return false
	}
	return n.test(v)
}

// compileNode checks that c is exactly one of leaf, all, any or not and
// compiles it recursively.
func compileNode(c core.Condition, path string, o options) (node, error) {
	kinds := 0
	if c.IsLeaf() {
		kinds++
	}
	if c.All != nil {
		kinds++
	}
	if c.Any != nil {
		kinds++
	}
	if c.Not != nil {
		kinds++
	}
	if kinds != 1 {
		return nil, errorAt(path, ErrInvalidCondition, "must define exactly one of field/op, all, any or not")
	}

	switch {
	case c.Not != nil:
		child, err := compileNode(*c.Not, path+".not", o)
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil

	case c.All != nil:
		children, err := compileChildren(c.All, path+".all", o)
		if err != nil {
			return nil, err
		}
		return allNode(children), nil

	case c.Any != nil:
		children, err := compileChildren(c.Any, path+".any", o)
		if err != nil {
			return nil, err
		}
		return anyNode(children), nil
	}

	return compileLeaf(c, path, o)
}

func compileChildren(conds []core.Condition, path string, o options) ([]node, error) {
	if len(conds) == 0 {
		return nil, errorAt(path, ErrInvalidCondition, "requires at least one condition")
	}
	children := make([]node, 0, len(conds))
	for i, cond := range conds {
		child, err := compileNode(cond, fmt.Sprintf("%s[%d]", path, i), o)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compileLeaf(c core.Condition, path string, o options) (node, error) {
	if c.Field == "" {
		return nil, errorAt(path, ErrInvalidCondition, "missing field")
	}
	if c.Operator == "" {
		return nil, errorAt(path, ErrInvalidCondition, "missing op")
	}

	field, ok := resolveField(c.Field)
	if !ok {
		return nil, errorAt(path, ErrUnknownField, "%q", c.Field)
	}

	test, err := compilePredicate(c.Operator, c.Value, path, o.regexTimeout)
	if err != nil {
		return nil, err
	}
	return leafNode{field: field, test: test}, nil
}
