package bootstrap

import (
	"fmt"
	"os"

	"pulsar/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output.
// Logs go to stderr; stdout carries the threat stream.
func InitLogger(level string) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration from v and path.
// A nil v uses a fresh instance with defaults and env overrides.
func InitConfig(v *viper.Viper, path string, sugar *zap.SugaredLogger) (*config.Config, error) {
	if v == nil {
		v = config.New()
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	} else {
		sugar.Infow("Config file loaded", "path", v.ConfigFileUsed())
	}

	sugar.Infow("Config loaded",
		"rules_path", cfg.Rules.Path,
		"workers", cfg.Engine.WorkerCount,
		"ingest_format", cfg.Ingest.Format,
		"http_ingest", cfg.Ingest.HTTP.Enabled,
		"metrics", cfg.Metrics.Enabled)

	return cfg, nil
}
