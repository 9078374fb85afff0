// Command webwatchd is the long-running daemon process: it loads
// configuration, opens storage, wires C1-C7, and runs the scheduler
// until signaled to stop. Grounded on the teacher's cmd/quaero/main.go
// wiring order (config → logger → storage → services → run).
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GabriWar/vigilant/internal/changedetect"
	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/cookies"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/notify"
	"github.com/GabriWar/vigilant/internal/scheduler"
	"github.com/GabriWar/vigilant/internal/storage/badger"
	"github.com/GabriWar/vigilant/internal/watcher"
	"github.com/GabriWar/vigilant/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to webwatch.toml (defaults to built-in values)")
	flag.Parse()

	cfg, err := common.Load(*configPath)
	if err != nil {
		println("failed to load config:", err.Error())
		os.Exit(1)
	}

	logger := common.SetupLogger(cfg)
	defer common.Stop()

	manager, err := badger.NewManager(logger, &cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open storage")
		os.Exit(1)
	}
	defer manager.Close()

	client := httpclient.New(&cfg.HTTP)
	cookieStore := cookies.New(manager.Cookies(), logger)
	detector := changedetect.New(manager.Snapshots(), manager.ChangeLogs(), logger)
	watcherExec := watcher.New(manager.Watchers(), cookieStore, client, detector, manager, logger)
	workflowExec := workflow.New(manager.Workflows(), manager.Variables(), manager.Executions(), manager.Watchers(), client, manager, logger)
	sink := notify.NewLogSink(logger)

	sched := scheduler.New(
		&cfg.Scheduler,
		&cfg.Cookie,
		&cfg.HTTP,
		manager.Watchers(),
		manager.Workflows(),
		manager.Executions(),
		cookieStore,
		watcherExec,
		workflowExec,
		sink,
		logger,
	)

	sched.Start()
	logger.Info().Msg("webwatchd running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutdown signal received")
	sched.Stop(30 * time.Second)
}
