package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/application"
	"github.com/oisp/sensor/internal/domain/policy"
	"github.com/oisp/sensor/internal/domain/spec"
	"github.com/oisp/sensor/internal/infrastructure/config"
	"github.com/oisp/sensor/internal/infrastructure/logger"
)

const (
	appName    = "oisp-sensor"
	appVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sensor",
		Short: "OISP — always-on AI traffic sensor",
		Long:  "oisp-sensor observes AI traffic leaving this machine, builds per-process agent traces, and exports canonical events to the configured sinks.",
		RunE:  runSensor,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the sensor in the foreground (default)",
		RunE:  runSensor,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy file operations",
	}
	policyCmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Parse a policy file and report whether it loads cleanly",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPolicyValidate,
	})
	rootCmd.AddCommand(policyCmd)

	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Spec bundle operations",
	}
	specCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Force an immediate spec bundle fetch and report its version",
		RunE:  runSpecRefresh,
	})
	rootCmd.AddCommand(specCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSensor(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("starting oisp sensor", zap.String("version", appVersion))

	if err := config.Bootstrap(log); err != nil {
		log.Warn("home directory bootstrap incomplete", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	sensor, err := application.NewSensor(cfg, log)
	if err != nil {
		log.Fatal("failed to construct sensor", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sensor.Start(ctx); err != nil {
		log.Fatal("failed to start sensor", zap.Error(err))
	}

	// A probe-layer adapter would be wired in here, publishing raw capture
	// records onto sensor.Records(); none ships with the core, which only
	// ever consumes that channel.

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := sensor.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("sensor stopped cleanly")
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	log, err := logger.NewLogger(logger.Config{Level: "error", Format: "console", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		path = cfg.Policy.FilePath
	}

	mgr := policy.NewManager(path, log)
	if err := mgr.LoadInitial(); err != nil {
		fmt.Printf("✗ %s: %v\n", path, err)
		return err
	}
	fmt.Printf("✓ %s loaded cleanly\n", path)
	return nil
}

func runSpecRefresh(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{Level: "error", Format: "console", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.SpecBundle.URL == "" {
		fmt.Println("spec_bundle.url is unset; nothing to refresh, serving the embedded bundle only")
		return nil
	}

	loader := spec.NewLoader(spec.LoaderConfig{
		URL:             cfg.SpecBundle.URL,
		CachePath:       cfg.SpecBundle.CachePath,
		RefreshInterval: cfg.SpecBundle.RefreshInterval,
	}, log)
	loader.RefreshOnce()
	fmt.Printf("spec bundle version: %s\n", loader.Current().Version)
	return nil
}

