// Package application wires the sensor's domain and infrastructure
// collaborators into one runnable daemon. Sensor is the single construction
// point the entrypoint calls once, with Start/Stop lifecycle methods
// bracketing everything that needs an open file, a goroutine, or a network
// listener.
package application

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oisp/sensor/internal/application/pipeline"
	"github.com/oisp/sensor/internal/domain/appregistry"
	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/domain/decode"
	"github.com/oisp/sensor/internal/domain/enrich"
	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/policy"
	"github.com/oisp/sensor/internal/domain/redact"
	"github.com/oisp/sensor/internal/domain/repository"
	"github.com/oisp/sensor/internal/domain/spec"
	"github.com/oisp/sensor/internal/domain/trace"
	"github.com/oisp/sensor/internal/infrastructure/config"
	"github.com/oisp/sensor/internal/infrastructure/export"
	"github.com/oisp/sensor/internal/infrastructure/monitoring"
	"github.com/oisp/sensor/internal/infrastructure/persistence"
	"github.com/oisp/sensor/pkg/safego"
)

// Sensor owns every long-lived collaborator the dispatcher needs plus the
// optional admin HTTP surface, constructed once from Config and torn down
// in reverse order on Stop.
type Sensor struct {
	cfg *config.Config
	log *zap.Logger

	registries *spec.Registries
	specLoader *spec.Loader
	policies   *policy.Manager
	audit      *policy.AuditLogger
	traces     *trace.Builder
	sinks      *export.FanOut
	monitor    *monitoring.Monitor
	store      repository.TraceStore
	db         *gorm.DB

	dispatcher *pipeline.Dispatcher
	admin      *http.Server

	policyWatchDone chan struct{}
	specRunStop     chan struct{}
}

// NewSensor constructs every collaborator from cfg but starts nothing: no
// goroutine, no listener, no open file. Start does that.
func NewSensor(cfg *config.Config, log *zap.Logger) (*Sensor, error) {
	s := &Sensor{cfg: cfg, log: log}

	s.registries = &spec.Registries{}
	s.specLoader = spec.NewLoader(spec.LoaderConfig{
		URL:             cfg.SpecBundle.URL,
		CachePath:       cfg.SpecBundle.CachePath,
		RefreshInterval: cfg.SpecBundle.RefreshInterval,
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
	}, log)
	bundle := s.specLoader.LoadWithFallback()
	s.registries.Publish(bundle)
	s.specLoader.OnRefresh(s.registries.Publish)

	apps, errs := appregistry.LoadDirectory(cfg.AppRegistry.Dir)
	for _, e := range errs {
		log.Warn("app registry profile skipped", zap.Error(e))
	}

	host, _ := os.Hostname()
	decoder := decode.NewDecoder(s.registries.Current, event.Host{Hostname: host}, event.Source{
		Collector:     config.AppName,
		CaptureMethod: event.CaptureTLSBoundary,
	}, log)
	systemDecoder := decode.NewSystemDecoder(event.Host{Hostname: host}, event.Source{
		Collector:     config.AppName,
		CaptureMethod: event.CaptureSyscallIntercept,
	})

	enrichChain := enrich.NewChain(enrich.ProcessTree{Lookup: enrich.ProcfsLookup}, apps)

	redactCfg := redact.ResolveConfig(redact.Profile(cfg.Redact.Profile))
	redactCfg.PhoneNumbers = redactCfg.PhoneNumbers || cfg.Redact.Phones
	for _, p := range cfg.Redact.CustomPatterns {
		redactCfg.CustomPatterns = append(redactCfg.CustomPatterns, redact.CustomPattern{Name: "custom", Pattern: p})
	}
	redactor := redact.New(redactCfg)

	s.policies = policy.NewManager(cfg.Policy.FilePath, log)
	if err := s.policies.LoadInitial(); err != nil {
		log.Warn("policy file load failed, running with empty policy set", zap.Error(err))
	}
	executor := policy.NewExecutor(cfg.Policy.WebhookURL, log)

	auditWriter, err := openAuditWriter(cfg.Audit.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open audit output: %w", err)
	}
	s.audit = policy.NewAuditLogger(auditWriter, cfg.Audit.BufferSize, policy.Severity(cfg.Audit.MinSeverity), log)

	s.traces = trace.NewBuilder(log)
	s.traces.SetStaleAfter(cfg.Trace.StaleAfter)
	s.traces.SetMaxCompleted(cfg.Trace.MaxCompleted)
	s.traces.SetMaxPendingSpans(cfg.Trace.MaxPendingSpans)

	if cfg.Trace.Persist {
		db, err := persistence.NewDBConnection(&cfg.Persistence)
		if err != nil {
			return nil, fmt.Errorf("open trace store: %w", err)
		}
		s.db = db
		s.store = persistence.NewGormTraceStore(db)
	}

	s.sinks = export.NewFanOut(log)

	s.monitor = monitoring.NewMonitor(log)

	s.dispatcher = pipeline.New(pipeline.Config{
		Decoder:       decoder,
		SystemDecoder: systemDecoder,
		EnrichChain:   enrichChain,
		Redactor:      redactor,
		Policies:      s.policies,
		Executor:      executor,
		Audit:         s.audit,
		Traces:        s.traces,
		Sinks:         s.sinks,
		Monitor:       s.monitor,
		RecordBuffer:  cfg.Probe.ChannelBuffer,
		Log:           log,
	})
	if s.store != nil {
		s.dispatcher.OnTraceCompleted(func(t *trace.AgentTrace) {
			if err := s.store.Save(context.Background(), t); err != nil {
				log.Warn("failed to persist completed trace", zap.String("trace_id", t.TraceID), zap.Error(err))
			}
		})
	}

	return s, nil
}

// Records returns the channel a probe-layer adapter publishes raw capture
// records to. The sensor core has no opinion on how those records were
// captured; it only drains this channel.
func (s *Sensor) Records() chan<- capture.Record {
	return s.dispatcher.Records()
}

// Monitor exposes the metrics collector, for the admin HTTP surface and for
// tests that want to assert on pipeline counters directly.
func (s *Sensor) Monitor() *monitoring.Monitor { return s.monitor }

// TraceStore exposes the optional persisted trace store, nil unless
// trace.persist is enabled.
func (s *Sensor) TraceStore() repository.TraceStore { return s.store }

// Start registers the configured sinks, launches the dispatcher, the spec
// bundle refresh task, the policy hot-reload watcher, the audit flush loop,
// and (if enabled) the admin HTTP surface.
func (s *Sensor) Start(ctx context.Context) error {
	if err := s.registerSinks(ctx); err != nil {
		return fmt.Errorf("register sinks: %w", err)
	}

	safego.Go(s.log, "dispatcher", func() { s.dispatcher.Run(ctx) })

	s.specRunStop = make(chan struct{})
	safego.Go(s.log, "spec-loader", func() { s.specLoader.Run(s.specRunStop) })

	if s.cfg.Policy.HotReload {
		s.policyWatchDone = make(chan struct{})
		safego.Go(s.log, "policy-watch", func() {
			defer close(s.policyWatchDone)
			if err := s.policies.Watch(); err != nil {
				s.log.Warn("policy hot-reload watcher exited", zap.Error(err))
			}
		})
	}

	safego.Go(s.log, "audit-flush", func() { s.audit.Run(s.cfg.Audit.FlushInterval) })
	safego.Go(s.log, "monitor-collector", func() { s.monitor.StartCollector(ctx, 10*time.Second) })

	if s.cfg.Metrics.Enabled {
		s.admin = newAdminServer(s.cfg.Metrics.Addr, s)
		safego.Go(s.log, "admin-server", func() {
			if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("admin server stopped unexpectedly", zap.Error(err))
			}
		})
	}

	s.log.Info("sensor started",
		zap.String("policy_file", s.cfg.Policy.FilePath),
		zap.Bool("persist", s.cfg.Trace.Persist),
		zap.Int("sinks", len(s.cfg.Sinks)),
	)
	return nil
}

// Stop drains outstanding work and closes every resource Start opened, in
// roughly reverse order.
func (s *Sensor) Stop(ctx context.Context) error {
	if s.admin != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = s.admin.Shutdown(shutdownCtx)
	}

	if s.specRunStop != nil {
		close(s.specRunStop)
	}
	if s.policies != nil {
		s.policies.Close()
	}
	if s.policyWatchDone != nil {
		<-s.policyWatchDone
	}

	s.sinks.Shutdown(10 * time.Second)
	s.audit.Close()

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	s.log.Info("sensor stopped")
	return nil
}

// registerSinks constructs and registers every configured sink with the
// fan-out exporter; an unknown sink type is a startup-time configuration
// error, never a runtime one.
func (s *Sensor) registerSinks(ctx context.Context) error {
	if len(s.cfg.Sinks) == 0 {
		s.log.Warn("no sinks configured, events will be decoded and traced but never exported")
	}
	for _, sc := range s.cfg.Sinks {
		sink, err := buildSink(sc)
		if err != nil {
			return err
		}
		var deadLetter export.Sink
		if sc.DeadLetterPath != "" {
			deadLetter = export.NewFileSink(sc.DeadLetterPath)
		}
		if err := s.sinks.Register(ctx, sink, sc.QueueSize, sc.BatchSize, sc.BatchInterval, deadLetter); err != nil {
			return fmt.Errorf("register sink %s: %w", sc.Type, err)
		}
	}
	return nil
}

func buildSink(sc config.SinkConfig) (export.Sink, error) {
	switch sc.Type {
	case "stdout", "":
		return export.NewStdoutSink(os.Stdout), nil
	case "file":
		if sc.Path == "" {
			return nil, fmt.Errorf("file sink requires a path")
		}
		return export.NewFileSink(sc.Path), nil
	case "webhook":
		if sc.URL == "" {
			return nil, fmt.Errorf("webhook sink requires a url")
		}
		return export.NewWebhookSink(sc.URL), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", sc.Type)
	}
}

func openAuditWriter(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
