package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/watcher"
)

// addWatcherCommands wires "watcher run" and "watcher dry-run" against
// the shared watcher executor (spec §6 control surface).
func addWatcherCommands(rootCmd *cobra.Command, manager storage.Manager, client *httpclient.Client, watcherExec *watcher.Executor) {
	watcherCmd := &cobra.Command{
		Use:   "watcher",
		Short: "Run and validate watchers",
	}

	runCmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Execute one check of a watcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid watcher id %q: %w", args[0], err)
			}
			return runWatcher(cmd, manager, watcherExec, id)
		},
	}

	dryRunCmd := &cobra.Command{
		Use:   "dry-run <id>",
		Short: "Execute a watcher's request template without persisting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid watcher id %q: %w", args[0], err)
			}
			return dryRunWatcher(cmd, manager, watcherExec, id)
		},
	}

	watcherCmd.AddCommand(runCmd, dryRunCmd)
	rootCmd.AddCommand(watcherCmd)
}

func runWatcher(cmd *cobra.Command, manager storage.Manager, watcherExec *watcher.Executor, id int64) error {
	ctx := ctxOf(cmd)

	w, err := manager.Watchers().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load watcher %d: %w", id, err)
	}

	result, err := watcherExec.Run(ctx, w)
	if err != nil {
		return fmt.Errorf("run watcher %d: %w", id, err)
	}

	printChangeResult(cmd, w.ID, result)
	return nil
}

func printChangeResult(cmd *cobra.Command, watcherID int64, result *watcher.Result) {
	line := fmt.Sprintf("watcher %d: status=%s http=%d size=%d change=%s", watcherID, result.Status, result.HTTPStatus, result.Size, result.ChangeType)
	switch result.ChangeType {
	case models.ChangeNew:
		cmd.Println(color.GreenString(line))
	case models.ChangeModified:
		cmd.Println(color.YellowString(line))
	case models.ChangeError:
		cmd.Println(color.RedString(line))
	default:
		cmd.Println(line)
	}
}

func dryRunWatcher(cmd *cobra.Command, manager storage.Manager, watcherExec *watcher.Executor, id int64) error {
	ctx := ctxOf(cmd)

	w, err := manager.Watchers().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load watcher %d: %w", id, err)
	}

	req := httpclient.Request{URL: w.URL, Method: w.Method, Headers: w.HeaderMap(), Body: w.Body}
	result, err := watcherExec.DryRun(ctx, req)
	if err != nil {
		cmd.Println(color.RedString("dry-run failed: %v", err))
		return nil
	}

	if result.HTTPStatus >= 400 {
		cmd.Println(color.RedString("dry-run watcher %d: http=%d size=%d", id, result.HTTPStatus, len(result.Body)))
	} else {
		cmd.Println(color.GreenString("dry-run watcher %d: http=%d size=%d", id, result.HTTPStatus, len(result.Body)))
	}

	headerJSON, err := json.MarshalIndent(result.Headers, "", "  ")
	if err == nil {
		cmd.Println(string(headerJSON))
	}
	return nil
}
