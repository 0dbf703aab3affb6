// Command healthguard runs the health-monitoring and self-healing
// supervisor: the probe session on its scheduled cadence, the coordination
// bus, and the Prometheus metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/internal/config"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/alerting"
	rediscache "github.com/Think-Big-Media/warroom-healthguard/pkg/cache/redis"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/coordination"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/knowledge"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scheduler"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scoring"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/session"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/slamonitor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the supervisor configuration file")
	flag.Parse()

	subcommand := "start"
	if args := flag.Args(); len(args) > 0 {
		subcommand = args[0]
	}

	logger := newLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("configError: failed to load configuration")
	}

	switch subcommand {
	case "start":
		runStart(cfg, logger)
	case "check":
		os.Exit(runCheck(cfg, logger))
	case "status":
		os.Exit(runStatus(cfg))
	case "stop":
		fmt.Println("healthguard has no daemon manager; send SIGTERM/SIGINT to the running process to stop it")
	default:
		logger.Fatalf("unknown subcommand %q: expected start, stop, status, or check", subcommand)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func applyLogConfig(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
}

func toEndpoints(cfgEndpoints []config.EndpointConfig) []prober.Endpoint {
	endpoints := make([]prober.Endpoint, 0, len(cfgEndpoints))
	for _, e := range cfgEndpoints {
		timeout := time.Duration(e.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		endpoints = append(endpoints, prober.Endpoint{
			Path:           e.Path,
			Name:           e.Name,
			Critical:       e.Critical,
			Timeout:        timeout,
			ExpectedStatus: e.ExpectedStatus,
		})
	}
	return endpoints
}

// supervisor bundles the constructed components that both `start` and
// `check` need; `start` additionally runs the scheduler, SLA monitor, and
// coordination bus loops.
type supervisor struct {
	session    *session.Session
	scheduler  *scheduler.Scheduler
	slaMonitor *slamonitor.Monitor
	bus        *coordination.Bus
	store      *knowledge.Store
}

func buildSupervisor(cfg *config.Config, logger *logrus.Logger) *supervisor {
	var cache *rediscache.Cache[knowledge.Pattern]
	if cfg.Redis.Addr != "" {
		client := rediscache.NewClient(&redis.Options{Addr: cfg.Redis.Addr}, logger.WithField("component", "redis"))
		cache = rediscache.NewCache[knowledge.Pattern](client, "healthguard:knowledge", 24*time.Hour)
	}

	store := knowledge.NewStore(cfg.Knowledge.SinkDir, cfg.Knowledge.PiecesIntegrationEnabled, cache)
	if err := store.LoadFromDisk(); err != nil {
		logger.WithError(err).Warn("failed to load knowledge store from disk, starting empty")
	}

	dispatcher := alerting.New(nil, "", nil, logger)

	sessCfg := session.Config{
		BaseURL:        cfg.Target.BaseURL,
		Endpoints:      toEndpoints(cfg.Endpoints),
		SLAThresholdMs: int64(cfg.Performance.SLAThresholdMs),
		AutoFixEnabled: cfg.AutoFix.Enabled,
		MockEndpoints:  cfg.MockEndpoints,
		ReportsDir:     "reports",
		UIProbe: session.UIProbeConfig{
			Enabled: cfg.UIProbe.Enabled,
			Command: cfg.UIProbe.Command,
			Args:    cfg.UIProbe.Args,
			Timeout: time.Duration(cfg.UIProbe.TimeoutSeconds) * time.Second,
		},
	}

	sess := session.New(sessCfg, store, nil, dispatcher, logger)
	sched := scheduler.New(sess, cfg.SchedulerInterval(), logger)

	slaCfg := slamonitor.Config{
		Endpoints:         endpointPaths(cfg.Endpoints),
		Interval:          cfg.SLAMonitorInterval(),
		SLAThresholdMs:    int64(cfg.Performance.SLAThresholdMs),
		ToleranceFraction: cfg.SLAMonitor.ToleranceFraction,
		SamplesPerTick:    cfg.SLAMonitor.SamplesPerTick,
		RollingWindowTicks: cfg.SLAMonitor.RollingWindowTicks,
		ReportsDir:        "reports",
	}
	mon := slamonitor.New(cfg.Target.BaseURL, slaCfg, nil, dispatcher, logger)

	bus := coordination.New(coordination.DefaultHeartbeatInterval, sched, logger)
	bus.SetKnowledgeRecorder(store)
	dispatcher.SetBus(bus)
	sess.SetBroadcaster(bus)
	mon.SetBroadcaster(bus)

	return &supervisor{session: sess, scheduler: sched, slaMonitor: mon, bus: bus, store: store}
}

func endpointPaths(endpoints []config.EndpointConfig) []string {
	paths := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		paths = append(paths, e.Path)
	}
	return paths
}

func runStart(cfg *config.Config, logger *logrus.Logger) {
	applyLogConfig(logger, cfg.Logging)

	sup := buildSupervisor(cfg, logger)

	metricsServer := metrics.NewServer("9090", logger)
	metricsServer.StartAsync()

	busServer := &http.Server{Addr: ":" + cfg.Server.WebsocketPort, Handler: sup.bus.Router()}
	go func() {
		if err := busServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("coordination bus server stopped unexpectedly")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sup.scheduler.Run(ctx)
	go sup.slaMonitor.Run(ctx)

	logger.Info("healthguard supervisor started")
	<-ctx.Done()
	logger.Info("shutdown requested, stopping cooperatively")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = busServer.Shutdown(shutdownCtx)
	_ = metricsServer.Stop(shutdownCtx)
}

func runCheck(cfg *config.Config, logger *logrus.Logger) int {
	applyLogConfig(logger, cfg.Logging)

	sup := buildSupervisor(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	verdict, err := sup.session.ForceCheck(ctx)
	if err != nil {
		logger.WithError(err).Error("forced health check failed")
		return 1
	}

	data, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Println(string(data))

	if verdict.Overall == scoring.OverallCritical || verdict.Overall == scoring.OverallError {
		return 1
	}
	return 0
}

func runStatus(_ *config.Config) int {
	path := filepath.Join("reports", "latest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no completed session yet: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}
