package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/model"
)

var escalationsFlagCfg = config.DefaultConfig()

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "List tasks blocked on human action",
}

var escalationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every task currently in Blocked status",
	RunE:  runEscalationsList,
}

func init() {
	config.RegisterFlags(escalationsCmd.PersistentFlags(), escalationsFlagCfg)
	escalationsCmd.AddCommand(escalationsListCmd)
}

func runEscalationsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), escalationsFlagCfg)
	if err != nil {
		return err
	}

	adapter, err := backlog.NewFileAdapter(cfg.BacklogDir)
	if err != nil {
		return fmt.Errorf("opening backlog: %w", err)
	}

	blocked, err := adapter.ListTasks(context.Background(), backlog.ListFilter{Status: model.StatusBlocked})
	if err != nil {
		return fmt.Errorf("listing blocked tasks: %w", err)
	}
	if len(blocked) == 0 {
		cmd.Println("no tasks awaiting human action")
		return nil
	}

	for _, t := range blocked {
		cmd.Printf("%-30s %-8s %s\n", t.TaskID, t.Priority, t.Title)
	}
	return nil
}
