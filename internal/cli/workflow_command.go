package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/workflow"
)

// addWorkflowCommands wires "workflow execute" against the shared
// workflow executor (spec §6 control surface).
func addWorkflowCommands(rootCmd *cobra.Command, manager storage.Manager, workflowExec *workflow.Executor) {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Execute workflows",
	}

	executeCmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute a workflow's steps in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid workflow id %q: %w", args[0], err)
			}
			varsFlag, _ := cmd.Flags().GetStringSlice("var")
			overrides, err := parseOverrideVariables(varsFlag)
			if err != nil {
				return err
			}
			return executeWorkflow(cmd, manager, workflowExec, id, overrides)
		},
	}
	executeCmd.Flags().StringSlice("var", nil, "override variable as name=value, may be repeated")

	workflowCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(workflowCmd)
}

func parseOverrideVariables(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}

func executeWorkflow(cmd *cobra.Command, manager storage.Manager, workflowExec *workflow.Executor, id int64, overrides map[string]string) error {
	ctx := ctxOf(cmd)

	w, err := manager.Workflows().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load workflow %d: %w", id, err)
	}

	execution, err := workflowExec.Execute(ctx, w, overrides)
	if err != nil {
		return fmt.Errorf("execute workflow %d: %w", id, err)
	}

	line := fmt.Sprintf("workflow %d: status=%s steps=%d/%d", id, execution.Status, execution.StepsCompleted, execution.StepsTotal)
	switch execution.Status {
	case models.WorkflowSuccess:
		cmd.Println(color.GreenString(line))
	case models.WorkflowPartial:
		cmd.Println(color.YellowString(line))
	case models.WorkflowFailed:
		cmd.Println(color.RedString(line))
	default:
		cmd.Println(line)
	}
	return nil
}
