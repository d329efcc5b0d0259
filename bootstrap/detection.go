package bootstrap

import (
	"fmt"

	"pulsar/config"
	"pulsar/detect"

	"go.uber.org/zap"
)

// InitEngine loads and compiles the rule set and builds the rules engine
func InitEngine(cfg *config.Config, sender detect.ModuleSender, sugar *zap.SugaredLogger) (*detect.PulsarEngine, error) {
	sugar.Infow("Loading rules", "path", cfg.Rules.Path)
	CheckRulesDirectory(cfg.Rules.Path, sugar)

	engine, err := detect.New(cfg.Rules.Path, sender,
		detect.WithCompiler(detect.NewConditionCompiler(cfg.Rules.RegexTimeout)),
		detect.WithLogger(sugar),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rules engine: %w", err)
	}

	rules := engine.Rules()
	if len(rules) == 0 {
		sugar.Warnw("No rules loaded, every event will pass through unmatched", "path", cfg.Rules.Path)
	} else {
		sugar.Infof("Loaded %d rules", len(rules))
	}
	return engine, nil
}
