package detect

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"pulsar/core"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed rules_schema.json
var rulesSchemaJSON []byte

// errMultipleDocuments rejects rule files holding more than one YAML document
var errMultipleDocuments = errors.New("rule file must contain a single YAML document")

var (
	rulesSchemaOnce sync.Once
	rulesSchema     *gojsonschema.Schema
	rulesSchemaErr  error
)

func loadRulesSchema() (*gojsonschema.Schema, error) {
	rulesSchemaOnce.Do(func() {
		rulesSchema, rulesSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(rulesSchemaJSON))
	})
	return rulesSchema, rulesSchemaErr
}

// LoadUserRulesFromDir scans root for rule files and parses all of them.
// Rules are returned in scan order. The first unreadable or malformed file
// aborts the load.
func LoadUserRulesFromDir(root string, logger *zap.SugaredLogger) ([]core.UserRule, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	files, err := ScanRuleFiles(root, logger)
	if err != nil {
		return nil, err
	}

	var rules []core.UserRule
	for _, file := range files {
		parsed, err := ParseRuleFile(file)
		if err != nil {
			return nil, err
		}
		logger.Debugf("Loaded %d rules from %s", len(parsed), file.Path)
		rules = append(rules, parsed...)
	}

	logger.Infow("Rule files loaded", "path", root, "files", len(files), "rules", len(rules))
	return rules, nil
}

// ParseRuleFile decodes a rule file body into its ordered list of rules.
// An empty body or an empty list is valid and yields no rules. A body with
// more than one YAML document is malformed.
func ParseRuleFile(file RuleFile) ([]core.UserRule, error) {
	node, err := decodeSingleDocument(file.Body)
	if err != nil {
		return nil, &RuleParsingError{Filename: file.Path, Err: err}
	}
	if node == nil {
		return nil, nil
	}

	var doc interface{}
	if err := node.Decode(&doc); err != nil {
		return nil, &RuleParsingError{Filename: file.Path, Err: err}
	}
	if doc == nil {
		return nil, nil
	}

	if err := validateRuleDocument(doc); err != nil {
		return nil, &RuleParsingError{Filename: file.Path, Err: err}
	}

	var rules []core.UserRule
	if err := node.Decode(&rules); err != nil {
		return nil, &RuleParsingError{Filename: file.Path, Err: err}
	}
	return rules, nil
}

// decodeSingleDocument returns the only document in body, or nil when body
// holds no document at all.
func decodeSingleDocument(body string) (*yaml.Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(body))

	var node yaml.Node
	if err := dec.Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var next yaml.Node
	if err := dec.Decode(&next); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errMultipleDocuments
		}
		return nil, err
	}
	return &node, nil
}

// validateRuleDocument checks the decoded document against the rule file schema
func validateRuleDocument(doc interface{}) error {
	schema, err := loadRulesSchema()
	if err != nil {
		return fmt.Errorf("failed to load rules schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate rules against schema: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("rules validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
