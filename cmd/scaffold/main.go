// Command scaffold is the autonomous task orchestrator's CLI: it runs
// sessions, watches them live, and inspects the backlog/history/worktree
// state a session leaves behind.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scaffold: %v\n", err)
		os.Exit(1)
	}
}
