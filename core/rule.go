package core

// UserRule is a detection rule as authored in a rule file
type UserRule struct {
	// Name identifies the rule and is attached verbatim to every threat it raises
	Name string `yaml:"name" json:"name"`
	// Type restricts the rule to events of the given type; empty matches every type
	Type        string    `yaml:"type,omitempty" json:"type,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Condition   Condition `yaml:"condition" json:"condition"`
}

// Condition is a node of a rule predicate tree.
// A node is either a leaf (Field, Operator, Value) or one of All, Any, Not.
type Condition struct {
	Field    string      `yaml:"field,omitempty" json:"field,omitempty"`
	Operator string      `yaml:"op,omitempty" json:"op,omitempty"`
	Value    interface{} `yaml:"value,omitempty" json:"value,omitempty"`

	All []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty" json:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty" json:"not,omitempty"`
}

// IsLeaf reports whether the node compares a single field
func (c Condition) IsLeaf() bool {
	return c.Field != "" || c.Operator != ""
}

// RuleEngineData is the payload attached to threats raised by the rules engine
type RuleEngineData struct {
	RuleName string `json:"rule_name" msgpack:"rule_name"`
}
