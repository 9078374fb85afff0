// Package cli implements webwatchctl, the one-shot control-surface
// client for spec §6's exposed operations (watcher.run, workflow.execute,
// changelog.list/statistics/compare), standing in for the external
// CRUD/RPC layer the core treats as a collaborator. Grounded on
// edgardnogueira-swagger-to-http's internal/cli package: a package-level
// rootCmd plus one addXCommands(rootCmd, ...) function per entity group,
// wired from Execute.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/GabriWar/vigilant/internal/changelog"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/watcher"
	"github.com/GabriWar/vigilant/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "webwatchctl",
	Short: "Control surface for the webwatch watcher and workflow engine",
	Long:  "One-shot CLI over the watcher/workflow/changelog operations the webwatch core exposes.",
}

// Execute wires every command group against the provided collaborators
// and runs the selected subcommand.
func Execute(
	manager storage.Manager,
	client *httpclient.Client,
	watcherExec *watcher.Executor,
	workflowExec *workflow.Executor,
	changelogSvc *changelog.Service,
) error {
	addWatcherCommands(rootCmd, manager, client, watcherExec)
	addWorkflowCommands(rootCmd, manager, workflowExec)
	addChangelogCommands(rootCmd, changelogSvc)
	return rootCmd.Execute()
}
