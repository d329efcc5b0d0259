package detect

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"pulsar/core"
	"pulsar/matcher"
	"pulsar/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_EmptyDirectory(t *testing.T) {
	m := &stubMatcher{}
	var got []core.UserRule
	engine, err := New(t.TempDir(), &recordingSender{}, WithCompiler(stubCompiler(m, nil, &got)))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, engine.Rules())
}

func TestNew_NilSender(t *testing.T) {
	_, err := New(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNilSender)
}

func TestNew_PassesAllRulesInOrder(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("dir%d", i%2), fmt.Sprintf("r%d.yaml", i)),
			fmt.Sprintf("- name: rule-%d\n  condition: {field: type, op: exists}\n", i))
	}

	var got []core.UserRule
	engine, err := New(root, &recordingSender{}, WithCompiler(stubCompiler(&stubMatcher{}, nil, &got)))
	require.NoError(t, err)

	var names []string
	for _, r := range got {
		names = append(names, r.Name)
	}
	// dir0 holds r0, r2, r4 and sorts before dir1
	assert.Equal(t, []string{"rule-0", "rule-2", "rule-4", "rule-1", "rule-3"}, names)
	assert.Equal(t, names, engine.Rules())
}

func TestNew_CompileError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "r.yaml"), "- name: r\n  condition: {field: type, op: exists}\n")

	cause := errors.New("boom")
	_, err := New(root, &recordingSender{}, WithCompiler(stubCompiler(nil, cause, nil)))
	require.Error(t, err)

	var compileErr *RuleCompileError
	require.True(t, errors.As(err, &compileErr))
	assert.ErrorIs(t, err, ErrRuleCompile)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "error compiling rules: boom", err.Error())
}

func TestNew_CompilerReturnsNilMatcher(t *testing.T) {
	_, err := New(t.TempDir(), &recordingSender{}, WithCompiler(stubCompiler(nil, nil, nil)))
	assert.ErrorIs(t, err, ErrRuleCompile)
}

func TestNew_ParseErrorStopsBeforeCompile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.yaml"), "- name: [unclosed")

	called := false
	compiler := CompilerFunc(func([]core.UserRule) (Matcher, error) {
		called = true
		return &stubMatcher{}, nil
	})

	_, err := New(root, &recordingSender{}, WithCompiler(compiler))
	assert.ErrorIs(t, err, ErrRuleParsing)
	assert.False(t, called)
}

func TestNew_DefaultCompilerRejectsBadRule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "r.yaml"), "- name: r\n  condition: {field: type, op: fuzzy}\n")

	_, err := New(root, &recordingSender{}, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuleCompile)
	assert.ErrorIs(t, err, matcher.ErrUnknownOperator)
}

func TestProcess_SkipsThreats(t *testing.T) {
	m := &stubMatcher{matches: []string{"r"}}
	sender := &recordingSender{}
	engine, err := New(t.TempDir(), sender, WithCompiler(stubCompiler(m, nil, nil)))
	require.NoError(t, err)

	skipped := testutil.ToFloat64(metrics.EventsSkipped)

	event := execEvent()
	event.Header.Threat = &core.Threat{Source: "other-module", Description: "Exec"}
	engine.Process(event)
	engine.Process(nil)

	assert.Equal(t, int64(0), m.calls.Load())
	assert.Empty(t, sender.all())
	assert.Equal(t, skipped+2, testutil.ToFloat64(metrics.EventsSkipped))
}

func TestProcess_EmitsOneThreatPerMatch(t *testing.T) {
	m := &stubMatcher{matches: []string{"r1", "r2"}}
	sender := &recordingSender{}
	engine, err := New(t.TempDir(), sender, WithCompiler(stubCompiler(m, nil, nil)))
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.RuleMatches.WithLabelValues("r1"))

	event := execEvent()
	engine.Process(event)

	sent := sender.all()
	require.Len(t, sent, 2)
	assert.Same(t, event, sent[0].original)
	assert.Same(t, event, sent[1].original)
	assert.Equal(t, []string{"r1", "r2"}, sender.ruleNames())
	assert.Equal(t, map[string]interface{}{"rule_name": "r1"}, sent[0].extra)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RuleMatches.WithLabelValues("r1")))
}

func TestProcess_NoMatch(t *testing.T) {
	m := &stubMatcher{}
	sender := &recordingSender{}
	engine, err := New(t.TempDir(), sender, WithCompiler(stubCompiler(m, nil, nil)))
	require.NoError(t, err)

	engine.Process(execEvent())
	assert.Equal(t, int64(1), m.calls.Load())
	assert.Empty(t, sender.all())
}

func TestProcess_PanicsWhenThreatDataCannotBeBuilt(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	m := &stubMatcher{matches: []string{"r1"}}
	sender := &recordingSender{}
	engine, err := New(t.TempDir(), sender,
		WithCompiler(stubCompiler(m, nil, nil)),
		WithLogger(zap.New(obs).Sugar()))
	require.NoError(t, err)

	engine.internal.valueOf = func(interface{}) (core.Value, error) {
		return nil, errors.New("unsupported payload")
	}

	require.Panics(t, func() { engine.Process(execEvent()) })
	assert.Empty(t, sender.all())

	entries := logs.FilterLevelExact(zapcore.PanicLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Failed to build rule engine data", entries[0].Message)
	assert.Equal(t, "r1", entries[0].ContextMap()["rule"])
}

func TestEngine_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.yaml"), `
- name: suspicious-exec
  type: Exec
  condition:
    field: payload.filename
    op: ends_with
    value: /nc
`)
	writeFile(t, filepath.Join(root, "sub", "b.yaml"), "")

	sender := &recordingSender{}
	engine, err := New(root, sender, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, err)
	assert.Equal(t, []string{"suspicious-exec"}, engine.Rules())

	event := execEvent()
	engine.Process(event)
	require.Equal(t, []string{"suspicious-exec"}, sender.ruleNames())

	// a threat built from the output is ignored
	derived := execEvent()
	derived.Header.ParentID = event.Header.EventID
	derived.Header.Threat = &core.Threat{Source: "rules-engine", Description: "Exec", Extra: sender.all()[0].extra}
	engine.Process(derived)
	assert.Len(t, sender.all(), 1)

	other := execEvent()
	other.Type = "FileOpened"
	engine.Process(other)
	assert.Len(t, sender.all(), 1)
}

func TestProcess_Concurrent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "r.yaml"), `
- name: netcat
  condition: {field: payload.filename, op: regex, value: "/nc$"}
- name: exec
  condition: {field: type, op: equals, value: Exec}
`)

	sender := &recordingSender{}
	engine, err := New(root, sender)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				engine.Process(execEvent())
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sender.all(), 8*50*2)
}
