package detect

import (
	"errors"
	"path/filepath"
	"testing"

	"pulsar/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRules = `
- name: suspicious-exec
  type: Exec
  description: netcat started
  condition:
    field: payload.filename
    op: ends_with
    value: /nc
- name: root-shell
  condition:
    all:
      - field: header.image
        op: equals
        value: /bin/sh
      - not:
          field: payload.uid
          op: greater_than
          value: 0
`

func TestParseRuleFile(t *testing.T) {
	rules, err := ParseRuleFile(RuleFile{Path: "rules.yaml", Body: twoRules})
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "suspicious-exec", rules[0].Name)
	assert.Equal(t, "Exec", rules[0].Type)
	assert.Equal(t, "netcat started", rules[0].Description)
	assert.Equal(t, core.Condition{Field: "payload.filename", Operator: "ends_with", Value: "/nc"}, rules[0].Condition)

	assert.Equal(t, "root-shell", rules[1].Name)
	require.Len(t, rules[1].Condition.All, 2)
	require.NotNil(t, rules[1].Condition.All[1].Not)
	assert.Equal(t, 0, rules[1].Condition.All[1].Not.Value)
}

func TestParseRuleFile_Empty(t *testing.T) {
	for _, body := range []string{"", "   \n", "# only a comment\n", "[]"} {
		rules, err := ParseRuleFile(RuleFile{Path: "empty.yaml", Body: body})
		require.NoError(t, err, "body %q", body)
		assert.Empty(t, rules, "body %q", body)
	}
}

func TestParseRuleFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax error", "- name: [unclosed"},
		{"not a list", "name: single\ncondition: {}"},
		{"missing name", "- condition: {field: type, op: exists}"},
		{"empty name", "- name: ''\n  condition: {field: type, op: exists}"},
		{"missing condition", "- name: r"},
		{"unknown key", "- name: r\n  condition: {field: type, op: exists}\n  severity: high"},
		{"name not a string", "- name: 12\n  condition: {field: type, op: exists}"},
		{"second document", "- name: first\n  condition: {field: type, op: exists}\n---\n- name: second\n  condition: {field: type, op: exists}\n"},
		{"empty second document", "- name: first\n  condition: {field: type, op: exists}\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleFile(RuleFile{Path: "/rules/bad.yaml", Body: tt.body})
			require.Error(t, err)

			var parseErr *RuleParsingError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, "/rules/bad.yaml", parseErr.Filename)
			assert.Equal(t, "error parsing rule file: /rules/bad.yaml", err.Error())
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}

func TestParseRuleFile_MultipleDocuments(t *testing.T) {
	body := "- name: first\n  condition: {field: type, op: exists}\n---\n- name: second\n  condition: {field: type, op: exists}\n"

	rules, err := ParseRuleFile(RuleFile{Path: "multi.yaml", Body: body})
	assert.Nil(t, rules)
	require.ErrorIs(t, err, ErrRuleParsing)
	assert.ErrorIs(t, err, errMultipleDocuments)
}

func TestParseRuleFile_ExplicitDocumentStart(t *testing.T) {
	rules, err := ParseRuleFile(RuleFile{Path: "start.yaml", Body: "---\n" + twoRules})
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestLoadUserRulesFromDir_ConcatenatesInPathOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.yaml"), "- name: last\n  condition: {field: type, op: exists}\n")
	writeFile(t, filepath.Join(root, "a.yaml"), twoRules)
	writeFile(t, filepath.Join(root, "m", "empty.yaml"), "")

	rules, err := LoadUserRulesFromDir(root, nil)
	require.NoError(t, err)

	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"suspicious-exec", "root-shell", "last"}, names)
}

func TestLoadUserRulesFromDir_ParseErrorNamesFile(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "sub", "broken.yaml")
	writeFile(t, filepath.Join(root, "good.yaml"), twoRules)
	writeFile(t, bad, "- name: [unclosed")

	rules, err := LoadUserRulesFromDir(root, nil)
	require.Error(t, err)
	assert.Nil(t, rules)

	var parseErr *RuleParsingError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, bad, parseErr.Filename)
	assert.ErrorIs(t, err, ErrRuleParsing)
}

func TestLoadUserRulesFromDir_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "not yaml: [")
	writeFile(t, filepath.Join(root, "rules.yml"), "not yaml: [")

	rules, err := LoadUserRulesFromDir(root, nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
