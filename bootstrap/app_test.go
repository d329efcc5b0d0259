package bootstrap

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pulsar/core"
	"pulsar/detect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const execRule = `
- name: suspicious-exec
  type: Exec
  condition:
    field: payload.filename
    op: ends_with
    value: /nc
`

func writeAppConfig(t *testing.T, rulesDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("rules:\n  path: %s\nmetrics:\n  enabled: false\nengine:\n  worker_count: 2\n  channel_buffer_size: 16\n", rulesDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestApp_StreamToThreats(t *testing.T) {
	rules := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rules, "exec.yaml"), []byte(execRule), 0o644))

	input := strings.Join([]string{
		`{"header":{"event_id":"e1"},"type":"Exec","payload":{"filename":"/usr/bin/nc"}}`,
		`{"header":{"event_id":"e2"},"type":"Exec","payload":{"filename":"/bin/ls"}}`,
		`{"header":{"event_id":"e3"},"type":"Exec","payload":{"filename":"/bin/nc"}}`,
	}, "\n")

	var out bytes.Buffer
	ctx := context.Background()
	app, err := NewApp(ctx, Options{
		ConfigPath: writeAppConfig(t, rules),
		Input:      strings.NewReader(input),
		Output:     &out,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.Nil(t, app.MetricsServer)
	assert.Nil(t, app.HTTPListener)

	require.NoError(t, app.Start(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	app.WaitForShutdown(waitCtx)
	require.NoError(t, waitCtx.Err(), "stream end should trigger shutdown")

	app.Shutdown()
	app.Shutdown()

	parents := map[string]bool{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var threat core.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &threat))
		require.NotNil(t, threat.Header.Threat)
		assert.Equal(t, "rules-engine", threat.Header.Source)
		assert.Equal(t, map[string]interface{}{"rule_name": "suspicious-exec"}, threat.Header.Threat.Extra)
		parents[threat.Header.ParentID] = true
	}
	assert.Equal(t, map[string]bool{"e1": true, "e3": true}, parents)
	assert.Equal(t, int64(2), app.ThreatWriter.Written())
}

func TestNewApp_RuleErrorsSurface(t *testing.T) {
	rules := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rules, "bad.yaml"), []byte("- name: [oops"), 0o644))

	_, err := NewApp(context.Background(), Options{
		ConfigPath: writeAppConfig(t, rules),
		Logger:     zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, detect.ErrRuleParsing)
}

func TestNewApp_BadConfig(t *testing.T) {
	_, err := NewApp(context.Background(), Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Logger:     zaptest.NewLogger(t),
	})
	assert.Error(t, err)
}

func TestApp_ShutdownWithoutStart(t *testing.T) {
	app, err := NewApp(context.Background(), Options{
		ConfigPath: writeAppConfig(t, t.TempDir()),
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		app.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown hung for an app that never started")
	}
}

func TestInitLogger(t *testing.T) {
	_, sugar, err := InitLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, sugar)

	_, _, err = InitLogger("loud")
	assert.Error(t, err)
}
