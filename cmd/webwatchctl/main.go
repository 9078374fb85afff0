// Command webwatchctl is the one-shot control-surface client: it opens
// the same storage the daemon uses and runs a single watcher/workflow/
// changelog operation before exiting. Grounded on the teacher pack's
// cmd/swagger-to-http/main.go wiring order (config/storage first, then
// cli.Execute(...)).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GabriWar/vigilant/internal/changedetect"
	"github.com/GabriWar/vigilant/internal/changelog"
	"github.com/GabriWar/vigilant/internal/cli"
	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/cookies"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/storage/badger"
	"github.com/GabriWar/vigilant/internal/watcher"
	"github.com/GabriWar/vigilant/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to webwatch.toml (defaults to built-in values)")
	flag.Parse()
	os.Args = append([]string{os.Args[0]}, flag.Args()...)

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	logger := common.SetupLogger(cfg)
	defer common.Stop()

	manager, err := badger.NewManager(logger, &cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %s\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	client := httpclient.New(&cfg.HTTP)
	cookieStore := cookies.New(manager.Cookies(), logger)
	detector := changedetect.New(manager.Snapshots(), manager.ChangeLogs(), logger)
	watcherExec := watcher.New(manager.Watchers(), cookieStore, client, detector, manager, logger)
	workflowExec := workflow.New(manager.Workflows(), manager.Variables(), manager.Executions(), manager.Watchers(), client, manager, logger)
	changelogSvc := changelog.New(manager.ChangeLogs())

	if err := cli.Execute(manager, client, watcherExec, workflowExec, changelogSvc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
