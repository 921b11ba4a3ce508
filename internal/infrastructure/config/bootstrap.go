package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "oisp"

// HomeDir returns the sensor's configuration home: ~/.oisp
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.oisp exists with its default content. Safe to call
// on every startup: it only creates what's missing, never overwrites a
// file a user has already edited.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	dirs := []string{root, filepath.Join(root, "apps")}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"): defaultConfig,
		filepath.Join(root, "policy.yaml"): defaultPolicy,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			logger.Warn("failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("sensor home bootstrap complete", zap.String("home", root), zap.Int("files_created", created))
	} else {
		logger.Debug("sensor home directory OK", zap.String("home", root))
	}
	return nil
}

const defaultConfig = `# OISP sensor configuration — auto-generated on first launch, edit freely.
# Values here override the built-in defaults; OISP_-prefixed environment
# variables override this file.

log:
  level: info        # debug | info | warn | error
  format: json        # console | json

probe:
  channel_buffer: 4096
  housekeeping_interval: 30s

spec_bundle:
  url: ""             # leave empty to use only the embedded fallback copy
  cache_path: ~/.oisp/spec_bundle.json
  refresh_interval: 3600s

app_registry:
  dir: ~/.oisp/apps

redact:
  profile: safe        # safe | full | minimal
  phones: false
  custom_patterns: []

policy:
  file_path: ~/.oisp/policy.yaml
  hot_reload: true
  webhook_url: ""

audit:
  output_path: ~/.oisp/audit.jsonl
  buffer_size: 100
  min_severity: info
  flush_interval: 5s

trace:
  stale_after: 5m
  max_pending_spans: 10000
  max_completed: 10000
  persist: false       # set true to also write completed traces to persistence.dsn

persistence:
  type: sqlite         # sqlite | postgres
  dsn: ~/.oisp/traces.db

sinks:
  - type: stdout
    queue_size: 1000
    batch_size: 1
  # - type: file
  #   path: ~/.oisp/events.jsonl
  #   queue_size: 1000
  #   batch_size: 50
  #   batch_interval: 2s
  # - type: webhook
  #   url: https://example.com/oisp/events
  #   queue_size: 1000
  #   batch_size: 20
  #   batch_interval: 2s
  #   dead_letter_path: ~/.oisp/dead_letter.jsonl

metrics:
  enabled: true
  addr: 127.0.0.1:9273
`

const defaultPolicy = `# OISP policy file — evaluated in descending priority order; the first
# enabled match wins. No match falls through to "default" below.
version: 1
default: allow

policies: []
# Example:
# policies:
#   - id: block-internal-secrets
#     name: Block prompts whose first message names an internal host
#     enabled: true
#     priority: 10
#     condition:
#       field: messages.0.content
#       op: contains
#       value: "internal.corp"
#     action:
#       type: block
#       reason: "prompt references an internal hostname"
`
