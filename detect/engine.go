package detect

import (
	"errors"
	"time"

	"pulsar/core"
	"pulsar/metrics"

	"go.uber.org/zap"
)

// ErrNilSender is returned by New when no output sender is given
var ErrNilSender = errors.New("rules engine requires a module sender")

// ModuleSender emits events derived from an original event. The
// implementation links the new event to the original and must be safe for
// concurrent use; SendThreatDerived must not block.
type ModuleSender interface {
	SendThreatDerived(original *core.Event, extra core.Value)
}

// PulsarEngine evaluates every incoming event against the compiled rule set
// and raises one threat event per matching rule.
//
// The engine is immutable once built. Copies of the handle share the same
// compiled rules and sender, and Process may be called from any number of
// goroutines without locking.
type PulsarEngine struct {
	internal *engineInternal
}

type engineInternal struct {
	matcher Matcher
	sender  ModuleSender
	rules   []string
	logger  *zap.SugaredLogger
	valueOf func(v interface{}) (core.Value, error)
}

type engineOptions struct {
	compiler Compiler
	logger   *zap.SugaredLogger
}

// Option configures New
type Option func(*engineOptions)

// WithCompiler replaces the default condition compiler
func WithCompiler(c Compiler) Option {
	return func(o *engineOptions) {
		o.compiler = c
	}
}

// WithLogger sets the logger used while loading and dispatching
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// New loads every rule file under rulesPath, compiles the rule set and
// returns an engine emitting threats through sender.
//
// Loading is fail-fast: an unreadable file, a malformed file or a rule set
// that does not compile returns a typed error and no engine.
func New(rulesPath string, sender ModuleSender, opts ...Option) (*PulsarEngine, error) {
	if sender == nil {
		return nil, ErrNilSender
	}

	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	if o.compiler == nil {
		o.compiler = NewConditionCompiler(0)
	}

	rules, err := LoadUserRulesFromDir(rulesPath, o.logger)
	if err != nil {
		return nil, err
	}

	m, err := compileRules(o.compiler, rules)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.Name)
	}
	metrics.RulesLoaded.Set(float64(len(names)))
	o.logger.Infow("Rules engine ready", "path", rulesPath, "rules", len(names))

	return &PulsarEngine{
		internal: &engineInternal{
			matcher: m,
			sender:  sender,
			rules:   names,
			logger:  o.logger,
			valueOf: core.ValueOf,
		},
	}, nil
}

// Process evaluates event and emits a threat for every matching rule.
// Events that are already threats are ignored so that rules never fire on
// their own output.
func (e *PulsarEngine) Process(event *core.Event) {
	if event == nil || event.IsThreat() {
		metrics.EventsSkipped.Inc()
		return
	}

	start := time.Now()
	matches := e.internal.matcher.Evaluate(event)
	metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())
	metrics.EventsProcessed.Inc()

	for _, name := range matches {
		e.emit(event, name)
	}
}

// Rules returns the names of the loaded rules in load order
func (e *PulsarEngine) Rules() []string {
	out := make([]string, len(e.internal.rules))
	copy(out, e.internal.rules)
	return out
}

func (e *PulsarEngine) emit(event *core.Event, ruleName string) {
	value, err := e.internal.valueOf(core.RuleEngineData{RuleName: ruleName})
	if err != nil {
		// the payload shape is fixed, so this is a bug rather than bad input
		e.internal.logger.Panicw("Failed to build rule engine data", "rule", ruleName, "error", err)
	}

	metrics.RuleMatches.WithLabelValues(ruleName).Inc()
	e.internal.logger.Debugw("Rule matched", "rule", ruleName, "event_id", event.Header.EventID)
	e.internal.sender.SendThreatDerived(event, value)
}
