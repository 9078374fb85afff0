package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GabriWar/vigilant/internal/changelog"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// addChangelogCommands wires "changelog list/stats/compare" against
// the control-surface query service (spec §6).
func addChangelogCommands(rootCmd *cobra.Command, svc *changelog.Service) {
	changelogCmd := &cobra.Command{
		Use:   "changelog",
		Short: "Query recorded changes",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List change logs matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			watcherID, _ := cmd.Flags().GetInt64("watcher-id")
			limit, _ := cmd.Flags().GetInt("limit")
			orderBy, _ := cmd.Flags().GetString("order-by")
			direction, _ := cmd.Flags().GetString("direction")
			return listChangelogs(cmd, svc, storage.ChangeLogFilter{
				WatcherID: watcherID,
				OrderBy:   orderBy,
				Direction: direction,
				Limit:     limit,
			})
		},
	}
	listCmd.Flags().Int64("watcher-id", 0, "restrict to one watcher (0 = all)")
	listCmd.Flags().Int("limit", 0, "maximum rows to return (0 = unlimited)")
	listCmd.Flags().String("order-by", "detected_at", "detected_at | new_size | change_type")
	listCmd.Flags().String("direction", "desc", "asc | desc")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize change totals, sizes and frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			watcherIDFlag, _ := cmd.Flags().GetInt64("watcher-id")
			groupBy, _ := cmd.Flags().GetString("group-by")
			var watcherID *int64
			if watcherIDFlag != 0 {
				watcherID = &watcherIDFlag
			}
			return statsChangelogs(cmd, svc, watcherID, changelog.GroupBy(groupBy))
		},
	}
	statsCmd.Flags().Int64("watcher-id", 0, "restrict to one watcher (0 = all)")
	statsCmd.Flags().String("group-by", "day", "day | week | month")

	compareCmd := &cobra.Command{
		Use:   "compare <id...>",
		Short: "Compare 2-5 change logs by id, ordered by detected_at",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return compareChangelogs(cmd, svc, ids)
		},
	}

	changelogCmd.AddCommand(listCmd, statsCmd, compareCmd)
	rootCmd.AddCommand(changelogCmd)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid change log id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func listChangelogs(cmd *cobra.Command, svc *changelog.Service, filter storage.ChangeLogFilter) error {
	rows, err := svc.List(ctxOf(cmd), filter)
	if err != nil {
		return fmt.Errorf("list change logs: %w", err)
	}
	for _, row := range rows {
		line := fmt.Sprintf("#%d watcher=%d %s size=%d detected=%s", row.ID, row.WatcherID, row.ChangeType, row.NewSize, row.DetectedAt.Format(time.RFC3339))
		cmd.Println(colorByChangeType(row.ChangeType, line))
	}
	return nil
}

func colorByChangeType(changeType models.ChangeType, line string) string {
	switch changeType {
	case models.ChangeNew:
		return color.GreenString(line)
	case models.ChangeModified:
		return color.YellowString(line)
	case models.ChangeError:
		return color.RedString(line)
	default:
		return line
	}
}

func statsChangelogs(cmd *cobra.Command, svc *changelog.Service, watcherID *int64, groupBy changelog.GroupBy) error {
	stats, err := svc.Statistics(ctxOf(cmd), watcherID, nil, nil, groupBy)
	if err != nil {
		return fmt.Errorf("compute statistics: %w", err)
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func compareChangelogs(cmd *cobra.Command, svc *changelog.Service, ids []int64) error {
	rows, err := svc.Compare(ctxOf(cmd), ids)
	if err != nil {
		return fmt.Errorf("compare change logs: %w", err)
	}
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, fmt.Sprintf("#%d", row.ID))
	}
	cmd.Println(strings.Join(labels, " -> "))
	for _, row := range rows {
		cmd.Println(colorByChangeType(row.ChangeType, fmt.Sprintf("#%d %s detected=%s", row.ID, row.ChangeType, row.DetectedAt.Format(time.RFC3339))))
	}
	return nil
}
