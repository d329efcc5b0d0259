package detect

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"pulsar/core"

	"github.com/stretchr/testify/require"
)

type sentThreat struct {
	original *core.Event
	extra    core.Value
}

// recordingSender captures every derived threat
type recordingSender struct {
	mu   sync.Mutex
	sent []sentThreat
}

func (s *recordingSender) SendThreatDerived(original *core.Event, extra core.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentThreat{original: original, extra: extra})
}

func (s *recordingSender) all() []sentThreat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentThreat, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *recordingSender) ruleNames() []string {
	var names []string
	for _, threat := range s.all() {
		extra, ok := threat.extra.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := extra["rule_name"].(string)
		names = append(names, name)
	}
	return names
}

// stubMatcher returns a fixed match list and counts its calls
type stubMatcher struct {
	matches []string
	calls   atomic.Int64
}

func (m *stubMatcher) Evaluate(*core.Event) []string {
	m.calls.Add(1)
	return m.matches
}

// stubCompiler records the rules it was given
func stubCompiler(m Matcher, err error, got *[]core.UserRule) Compiler {
	return CompilerFunc(func(rules []core.UserRule) (Matcher, error) {
		if got != nil {
			*got = rules
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func execEvent() *core.Event {
	e := core.NewEvent()
	e.Type = "Exec"
	e.Header.Source = "process-monitor"
	e.Header.Image = "/usr/bin/bash"
	e.Header.Pid = 100
	e.Payload["filename"] = "/usr/bin/nc"
	return e
}
