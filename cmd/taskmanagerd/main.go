// Command taskmanagerd is the Vibe Task Manager core daemon: it wires
// the project/task store, the Atomic Detector, the RDD engine, the
// Scheduler, and the Orchestration Engine (plus its periodic timers
// and agent transports) behind an HTTP API, following the shutdown and
// observability shape of the teacher's services/orchestrator/main.go.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/swarmguard/taskmanager/internal/api"
	"github.com/swarmguard/taskmanager/internal/atomic"
	"github.com/swarmguard/taskmanager/internal/config"
	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/obs"
	"github.com/swarmguard/taskmanager/internal/orchestration"
	orchstore "github.com/swarmguard/taskmanager/internal/orchestration/store"
	"github.com/swarmguard/taskmanager/internal/prompts"
	"github.com/swarmguard/taskmanager/internal/rdd"
	"github.com/swarmguard/taskmanager/internal/scheduler"
	"github.com/swarmguard/taskmanager/internal/store"
	"github.com/swarmguard/taskmanager/internal/transport"
	transportnats "github.com/swarmguard/taskmanager/internal/transport/nats"
	transportws "github.com/swarmguard/taskmanager/internal/transport/ws"
)

const serviceName = "taskmanagerd"

func main() {
	configPath := flag.String("config", "", "path to taskmanager.yaml (optional)")
	natsURL := flag.String("nats-url", "", "external NATS URL; empty starts an embedded server")
	jwtSecret := flag.String("jwt-secret", "dev-secret-change-me", "HMAC secret for agent bearer tokens")
	wsAddr := flag.String("ws-addr", "", "address for the WebSocket agent transport (empty disables it)")
	flag.Parse()

	obs.InitLogging(serviceName)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := obs.InitTracer(ctx, serviceName)
	shutdownMetrics, _ := obs.InitMetrics(ctx, serviceName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		return
	}

	st, err := store.Open(cfg.DataDirectory)
	if err != nil {
		slog.Error("project store open failed", "error", err)
		return
	}

	orchDB, err := orchstore.Open(filepath.Join(cfg.DataDirectory, "orchestration.db"))
	if err != nil {
		slog.Error("orchestration store open failed", "error", err)
		return
	}
	defer orchDB.Close()

	promptSvc, err := prompts.New(cfg.Prompts.Directory)
	if err != nil {
		slog.Error("prompt service init failed", "error", err)
		return
	}
	defer promptSvc.Close()

	capability := lm.Disabled{}

	detector, err := atomic.New(ctx, capability, promptSvc)
	if err != nil {
		slog.Error("atomic detector init failed", "error", err)
		return
	}

	rddEngine := rdd.New(detector, capability, promptSvc, rdd.Config{
		MaxDepth:      cfg.RDD.MaxDepth,
		MaxSubTasks:   cfg.RDD.MaxSubTasks,
		MinConfidence: cfg.RDD.MinConfidence,
	})

	sched := scheduler.New(scheduler.Config{
		Algorithm:          scheduler.Algorithm(cfg.Scheduling.Algorithm),
		MaxConcurrentTasks: cfg.Scheduling.MaxConcurrentTasks,
		MaxMemoryMB:        cfg.Scheduling.MaxMemoryMB,
		MaxCPUUtilization:  cfg.Scheduling.MaxCPUUtilization,
	})

	orchEngine, err := orchestration.NewEngine(orchestration.Dependencies{
		Store: orchDB,
		Config: orchestration.Config{
			Strategy:          orchestration.StrategyIntelligentHybrid,
			HeartbeatInterval: cfg.Orchestration.HeartbeatInterval,
			HeartbeatTimeout:  cfg.Orchestration.HeartbeatTimeout,
			WatchdogInterval:  cfg.Orchestration.WatchdogInterval,
			DefaultTimeoutMs:  cfg.Orchestration.DefaultTimeout.Milliseconds(),
			Recovery: orchestration.RecoveryConfig{
				AutoRetry:  cfg.Orchestration.Recovery.AutoRetry,
				MaxRetries: cfg.Orchestration.Recovery.MaxRetries,
				RetryDelay: cfg.Orchestration.Recovery.RetryDelay,
			},
		},
	})
	if err != nil {
		slog.Error("orchestration engine init failed", "error", err)
		return
	}

	timers := orchestration.NewTimers(orchEngine, func(snap orchestration.MetricsSnapshot) {
		slog.Info("orchestration metrics",
			"workflow_count", snap.WorkflowCount,
			"task_count", snap.TaskCount,
			"throughput_per_min", snap.ThroughputPerMin,
			"success_rate", snap.SuccessRate)
	})
	if err := timers.Start(ctx); err != nil {
		slog.Error("orchestration timers start failed", "error", err)
		return
	}
	defer timers.Stop()

	issuer := transport.NewTokenIssuer(*jwtSecret, 24*time.Hour)
	adapter := transport.EngineAdapter{Engine: orchEngine}

	natsAddr := *natsURL
	if natsAddr == "" {
		embedded, err := transportnats.EmbeddedServer()
		if err != nil {
			slog.Warn("embedded nats server failed to start, NATS transport disabled", "error", err)
		} else {
			defer embedded.Shutdown()
			natsAddr = embedded.ClientURL()
		}
	}
	if natsAddr != "" {
		natsBinding, err := transportnats.NewBinding(natsAddr, issuer, adapter)
		if err != nil {
			slog.Warn("nats transport binding failed, continuing without it", "error", err)
		} else if err := natsBinding.Start(); err != nil {
			slog.Warn("nats transport subscribe failed", "error", err)
		} else {
			defer natsBinding.Stop()
			slog.Info("nats agent transport ready", "url", natsAddr)
		}
	}

	if *wsAddr != "" {
		wsHandler := transportws.NewHandler(issuer, adapter)
		go func() {
			if err := api.RunHTTP(ctx, *wsAddr, wsHandler); err != nil {
				slog.Warn("websocket agent transport stopped", "error", err)
			}
		}()
		slog.Info("websocket agent transport ready", "addr", *wsAddr)
	}

	server := api.New(st, detector, rddEngine, sched, orchEngine, issuer)

	slog.Info("taskmanagerd started", "addr", cfg.Server.Address)
	if err := api.RunHTTP(ctx, cfg.Server.Address, server.Handler()); err != nil {
		slog.Error("http server error", "error", err)
	}

	slog.Info("shutdown initiated")
	if n := orchEngine.CancelAll("daemon shutdown"); n > 0 {
		slog.Info("cancelled in-flight executions", "count", n)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	obs.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("shutdown complete")
}
