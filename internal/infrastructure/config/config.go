package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the sensor's full runtime configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Probe      ProbeConfig      `mapstructure:"probe"`
	SpecBundle SpecBundleConfig `mapstructure:"spec_bundle"`
	AppRegistry AppRegistryConfig `mapstructure:"app_registry"`
	Redact     RedactConfig     `mapstructure:"redact"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Trace      TraceConfig      `mapstructure:"trace"`
	Sinks      []SinkConfig     `mapstructure:"sinks"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// LogConfig controls the root zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // console | json
}

// ProbeConfig sizes the channel the probe layer delivers raw records on.
type ProbeConfig struct {
	ChannelBuffer        int           `mapstructure:"channel_buffer"`
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval"`
}

// SpecBundleConfig controls where the provider/model spec bundle is
// fetched from, cached, and how often it refreshes.
type SpecBundleConfig struct {
	URL             string        `mapstructure:"url"`
	CachePath       string        `mapstructure:"cache_path"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// AppRegistryConfig points at the directory of app-profile YAML files.
type AppRegistryConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedactConfig picks the default whole-event redaction profile and any
// user-supplied custom patterns layered on top of it.
type RedactConfig struct {
	Profile         string   `mapstructure:"profile"` // safe | full | minimal
	Phones          bool     `mapstructure:"phones"`
	CustomPatterns  []string `mapstructure:"custom_patterns"`
}

// PolicyConfig points at the policy file and controls hot-reload.
type PolicyConfig struct {
	FilePath   string `mapstructure:"file_path"`
	HotReload  bool   `mapstructure:"hot_reload"`
	WebhookURL string `mapstructure:"webhook_url"` // default alert-action webhook
}

// AuditConfig controls where policy audit events are written.
type AuditConfig struct {
	OutputPath    string        `mapstructure:"output_path"` // "" or "-" means stdout
	BufferSize    int           `mapstructure:"buffer_size"`
	MinSeverity   string        `mapstructure:"min_severity"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// TraceConfig controls the Trace Builder's staleness/eviction bounds.
type TraceConfig struct {
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	MaxPendingSpans int           `mapstructure:"max_pending_spans"`
	MaxCompleted    int           `mapstructure:"max_completed"`
	Persist         bool          `mapstructure:"persist"`
}

// PersistenceConfig selects the gorm dialector backing the trace store,
// used only when trace.persist is true.
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // sqlite | postgres
	DSN  string `mapstructure:"dsn"`
}

// SinkConfig is one fan-out exporter destination.
type SinkConfig struct {
	Type          string        `mapstructure:"type"` // stdout | file | webhook
	Path          string        `mapstructure:"path"`
	URL           string        `mapstructure:"url"`
	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchInterval time.Duration `mapstructure:"batch_interval"`
	DeadLetterPath string       `mapstructure:"dead_letter_path"`
}

// MetricsConfig controls the /metrics HTTP exposition.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// EnvPrefix is the prefix for environment-variable overrides.
const EnvPrefix = "OISP"

// Load builds the sensor's Config from, in ascending priority: built-in
// defaults, the global config at ~/.oisp/config.yaml, a project-local
// config.yaml (if present, merged on top), and OISP_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err != nil {
			continue
		}
		local := viper.New()
		local.SetConfigFile(localPath)
		if err := local.ReadInConfig(); err == nil {
			_ = v.MergeConfigMap(local.AllSettings())
		}
		break
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("probe.channel_buffer", 4096)
	v.SetDefault("probe.housekeeping_interval", "30s")

	v.SetDefault("spec_bundle.url", "")
	v.SetDefault("spec_bundle.cache_path", filepath.Join(HomeDir(), "spec_bundle.json"))
	v.SetDefault("spec_bundle.refresh_interval", "3600s")

	v.SetDefault("app_registry.dir", filepath.Join(HomeDir(), "apps"))

	v.SetDefault("redact.profile", "safe")
	v.SetDefault("redact.phones", false)

	v.SetDefault("policy.file_path", filepath.Join(HomeDir(), "policy.yaml"))
	v.SetDefault("policy.hot_reload", true)

	v.SetDefault("audit.output_path", filepath.Join(HomeDir(), "audit.jsonl"))
	v.SetDefault("audit.buffer_size", 100)
	v.SetDefault("audit.min_severity", "info")
	v.SetDefault("audit.flush_interval", "5s")

	v.SetDefault("trace.stale_after", "5m")
	v.SetDefault("trace.max_pending_spans", 10000)
	v.SetDefault("trace.max_completed", 10000)
	v.SetDefault("trace.persist", false)

	v.SetDefault("persistence.type", "sqlite")
	v.SetDefault("persistence.dsn", filepath.Join(HomeDir(), "traces.db"))

	v.SetDefault("sinks", []map[string]any{
		{"type": "stdout", "queue_size": 1000, "batch_size": 1},
	})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "127.0.0.1:9273")
}
