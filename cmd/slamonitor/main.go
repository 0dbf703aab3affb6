// Command slamonitor runs the independent SLA performance monitor as a
// standalone process: its own periodic sampling loop, separate from the
// probe session's scheduler, writing to the same reports/performance
// directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/internal/config"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/alerting"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/slamonitor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the supervisor configuration file")
	flag.Parse()

	args := flag.Args()
	subcommand := "start"
	if len(args) > 0 {
		subcommand = args[0]
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("configError: failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		endpoints = append(endpoints, e.Path)
	}

	monCfg := slamonitor.Config{
		Endpoints:          endpoints,
		Interval:           cfg.SLAMonitorInterval(),
		SLAThresholdMs:     int64(cfg.Performance.SLAThresholdMs),
		ToleranceFraction:  cfg.SLAMonitor.ToleranceFraction,
		SamplesPerTick:     cfg.SLAMonitor.SamplesPerTick,
		RollingWindowTicks: cfg.SLAMonitor.RollingWindowTicks,
		ReportsDir:         "reports",
	}

	switch subcommand {
	case "start":
		dispatcher := alerting.New(nil, "", nil, logger)
		mon := slamonitor.New(cfg.Target.BaseURL, monCfg, nil, dispatcher, logger)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger.Info("sla monitor started")
		mon.Run(ctx)
	case "report":
		hours := 24.0
		if len(args) > 1 {
			if parsed, err := strconv.ParseFloat(args[1], 64); err == nil {
				hours = parsed
			}
		}
		report, err := slamonitor.ReportFromDisk("reports", hours)
		if err != nil {
			logger.WithError(err).Fatal("failed to build sla rollup report")
		}
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	default:
		logger.Fatalf("unknown subcommand %q: expected start or report", subcommand)
	}
}
