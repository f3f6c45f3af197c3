package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/keventd/internal/api"
	"github.com/dmdmdm-nz/keventd/internal/monitor"
	"github.com/dmdmdm-nz/keventd/internal/runtime"
	"github.com/dmdmdm-nz/keventd/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand(run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg *cli.Config) error {
	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: %s", cfg)

	protocols, err := cfg.ProtocolSet()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	monitorSvc, err := monitor.NewService(monitor.Config{
		Protocols:    protocols,
		ResolveLinks: cfg.ResolveLinks,
		Registerer:   reg,
	})
	if err != nil {
		return err
	}
	apiSvc := api.NewService(cfg.Host, cfg.Port, reg)

	// Wire subscriptions BEFORE starting producers to avoid missing anything.
	apiSvc.AttachMonitor(monitorSvc)

	super := runtime.NewSupervisor()
	super.Add("monitor", func(ctx context.Context) error { return monitorSvc.Start(ctx) }, monitorSvc.Close)
	super.Add("api", func(ctx context.Context) error { return apiSvc.Start(ctx) }, apiSvc.Close)

	if err := super.Start(ctx); err != nil {
		return fmt.Errorf("supervisor start failed: %w", err)
	}
	if err := super.Wait(ctx); err != nil {
		return fmt.Errorf("supervisor wait failed: %w", err)
	}
	return nil
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
