package spec

import (
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/oisp/sensor/pkg/errors"
)

//go:embed data/oisp-spec-bundle.json
var embeddedBundleJSON []byte

// LoaderConfig controls where the bundle is fetched from and cached, and
// how often a refresh is attempted.
type LoaderConfig struct {
	// URL to fetch a fresh bundle from. Empty disables network refresh;
	// the loader then only ever serves the disk cache or the embedded copy.
	URL string
	// CachePath is the platform-standard path the fetched bundle is
	// written to and re-read from across restarts.
	CachePath string
	// RefreshInterval is how often a fresh bundle is attempted. Default
	// matches the documented 3600s when zero.
	RefreshInterval time.Duration
	HTTPClient      *http.Client
}

// DefaultCachePath mirrors the original loader's platform-standard
// location: a dotfile directory under the user's home.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".oisp", "cache", "spec-bundle.json")
}

// Loader owns the current Bundle snapshot and the machinery to refresh it.
// The snapshot is published behind an atomic.Pointer so readers never lock.
type Loader struct {
	cfg       LoaderConfig
	logger    *zap.Logger
	current   atomic.Pointer[Bundle]
	lastFetch time.Time
	onRefresh func(*Bundle)
}

// OnRefresh registers a callback invoked with the new bundle every time
// RefreshOnce successfully replaces it, so a caller holding a separate
// published snapshot (e.g. Registries) can stay in sync with Run's ticker
// instead of only ever seeing the bundle Loader was constructed with.
func (l *Loader) OnRefresh(fn func(*Bundle)) {
	l.onRefresh = fn
}

func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 3600 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath()
	}
	return &Loader{cfg: cfg, logger: logger}
}

// LoadWithFallback establishes the initial snapshot: disk cache first, then
// the embedded bundle compiled into this binary. It never returns an error
// because the embedded bundle is always a valid fallback; parse failures in
// the disk cache are logged and skipped.
func (l *Loader) LoadWithFallback() *Bundle {
	if data, err := os.ReadFile(l.cfg.CachePath); err == nil {
		if b, perr := parseBundle(data); perr == nil {
			l.current.Store(b)
			l.logger.Info("spec bundle loaded from disk cache", zap.String("path", l.cfg.CachePath))
			return b
		} else {
			l.logger.Warn("disk-cached spec bundle invalid, falling back to embedded", zap.Error(perr))
		}
	}

	b, err := parseBundle(embeddedBundleJSON)
	if err != nil {
		// The embedded bundle ships with the binary; a parse failure here
		// is a build defect, not a runtime condition to recover from.
		panic(apperrors.NewSpecBundleError("embedded spec bundle failed to parse", err))
	}
	l.current.Store(b)
	l.logger.Info("spec bundle loaded from embedded fallback")
	return b
}

// Current returns the live snapshot. Safe for concurrent use without
// locking; callers never see a partially-updated bundle.
func (l *Loader) Current() *Bundle {
	return l.current.Load()
}

// NeedsRefresh reports whether RefreshInterval has elapsed since the last
// successful fetch.
func (l *Loader) NeedsRefresh() bool {
	if l.cfg.URL == "" {
		return false
	}
	return time.Since(l.lastFetch) >= l.cfg.RefreshInterval
}

// RefreshOnce attempts one fetch-parse-cache-publish cycle. Failures are
// logged and leave the current snapshot untouched; the registry refresh
// task calling this must never let a failure here affect event processing.
func (l *Loader) RefreshOnce() {
	if l.cfg.URL == "" {
		return
	}
	resp, err := l.cfg.HTTPClient.Get(l.cfg.URL)
	if err != nil {
		l.logger.Warn("spec bundle refresh failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		l.logger.Warn("spec bundle refresh returned non-200", zap.Int("status", resp.StatusCode))
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		l.logger.Warn("spec bundle refresh read failed", zap.Error(err))
		return
	}
	b, err := parseBundle(data)
	if err != nil {
		l.logger.Warn("spec bundle refresh parsed invalid bundle, keeping previous", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.cfg.CachePath), 0o755); err == nil {
		if werr := os.WriteFile(l.cfg.CachePath, data, 0o644); werr != nil {
			l.logger.Warn("failed to write spec bundle cache", zap.Error(werr))
		}
	}

	l.current.Store(b)
	l.lastFetch = time.Now()
	l.logger.Info("spec bundle refreshed", zap.String("version", b.Version))
	if l.onRefresh != nil {
		l.onRefresh(b)
	}
}

// Run blocks, refreshing on RefreshInterval ticks, until stop is closed.
// Intended to be launched via safego.Go as the registry refresh task.
func (l *Loader) Run(stop <-chan struct{}) {
	if l.cfg.URL == "" {
		return
	}
	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.RefreshOnce()
		}
	}
}

func parseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperrors.NewSpecBundleError("failed to parse spec bundle JSON", err)
	}
	if b.Providers == nil {
		return nil, apperrors.NewSpecBundleError("spec bundle has no providers", nil)
	}
	return &b, nil
}
