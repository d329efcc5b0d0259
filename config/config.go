package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g.
// PULSAR_RULES_PATH for rules.path.
const EnvPrefix = "PULSAR"

// RulesConfig locates and tunes the rule set
type RulesConfig struct {
	// Path is the root directory scanned recursively for *.yaml rule files
	Path string `mapstructure:"path" validate:"required"`
	// RegexTimeout bounds a single regex evaluation
	RegexTimeout time.Duration `mapstructure:"regex_timeout" validate:"gt=0"`
}

// EngineConfig sizes the processing pipeline
type EngineConfig struct {
	WorkerCount       int    `mapstructure:"worker_count" validate:"min=1,max=1024"`
	ChannelBufferSize int    `mapstructure:"channel_buffer_size" validate:"min=1"`
	ModuleName        string `mapstructure:"module_name" validate:"required"`
}

// HTTPIngestConfig configures the HTTP event endpoint
type HTTPIngestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port    int    `mapstructure:"port" validate:"min=0,max=65535"`
}

// IngestConfig configures the event sources
type IngestConfig struct {
	// Format of the standard input stream: json (one event per line) or msgpack
	Format string `mapstructure:"format" validate:"oneof=json msgpack"`
	// RateLimit caps events per second per source, 0 disables limiting
	RateLimit int `mapstructure:"rate_limit" validate:"min=0"`
	// DedupCacheSize is the number of recent event IDs remembered to drop
	// redelivered events, 0 disables deduplication
	DedupCacheSize int              `mapstructure:"dedup_cache_size" validate:"min=0"`
	HTTP           HTTPIngestConfig `mapstructure:"http"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Config holds all configuration for the pulsar service
type Config struct {
	Rules   RulesConfig   `mapstructure:"rules"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules.path", "/var/lib/pulsar/rules")
	v.SetDefault("rules.regex_timeout", 500*time.Millisecond)
	v.SetDefault("engine.worker_count", 4)
	v.SetDefault("engine.channel_buffer_size", 1000)
	v.SetDefault("engine.module_name", "rules-engine")
	v.SetDefault("ingest.format", "json")
	v.SetDefault("ingest.rate_limit", 0)
	v.SetDefault("ingest.dedup_cache_size", 10000)
	v.SetDefault("ingest.http.enabled", false)
	v.SetDefault("ingest.http.host", "0.0.0.0")
	v.SetDefault("ingest.http.port", 8090)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	loadFromEnv(v)
	return v
}

// LoadConfig loads configuration from file and environment variables.
// With an empty path config.yaml is looked up in . and ./config and may be
// absent; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	return Load(New(), path)
}

// Load reads the config file into v, decodes and validates the result
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults and env vars only
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
