package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/history"
)

var (
	historyFlagCfg = config.DefaultConfig()
	historyTaskID  string
	historySince   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the append-only ledger of completed task runs",
	RunE:  runHistory,
}

func init() {
	config.RegisterFlags(historyCmd.Flags(), historyFlagCfg)
	historyCmd.Flags().StringVar(&historyTaskID, "task", "", "Restrict to runs of a single task ID")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Restrict to runs started at or after this RFC3339 timestamp")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), historyFlagCfg)
	if err != nil {
		return err
	}

	filter := history.QueryFilter{TaskID: historyTaskID}
	if historySince != "" {
		since, err := time.Parse(time.RFC3339, historySince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = since
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("opening history ledger: %w", err)
	}
	defer store.Close()

	runs, err := store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		status := "failed"
		if r.Success {
			status = "success"
		}
		cmd.Printf("%-20s %-30s %-8s %-8s $%-6.2f %-30s\n",
			r.StartedAt.Format(time.RFC3339), r.TaskID, r.Route, status, r.CostUSD, r.PRURL)
	}
	return nil
}
