package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"deployhook/internal/history"
	"deployhook/internal/security"

	"github.com/spf13/cobra"
)

var (
	historyDBPath string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history SERVICE",
	Short: "Show recent deployments of a service",
	Long:  `Print recent invocations of a service from the SQLite audit log written by 'serve --db'.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPath, "db", getEnvOrDefault("DEPLOYHOOK_DB_PATH", ""), "Path to SQLite audit log")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := security.ValidateServiceName(name); err != nil {
		return err
	}
	if historyDBPath == "" {
		return fmt.Errorf("no audit log configured (use --db or DEPLOYHOOK_DB_PATH)")
	}

	// Opening creates the database, which would hide a mistyped path.
	if _, err := os.Stat(historyDBPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("audit log %s does not exist", historyDBPath)
		}
		return fmt.Errorf("failed to access audit log: %w", err)
	}

	hist, err := history.NewHistory(historyDBPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer hist.Close()

	records, err := hist.GetHistory(context.Background(), name, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No deployments recorded for %s\n", name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tEXIT\tDURATION\tCOMMIT\tINVOCATION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			formatExitCode(r.ExitCode),
			formatDuration(r.DurationSeconds),
			shortCommit(r.CommitHash),
			r.InvocationID)
	}
	return w.Flush()
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *code)
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds * float64(time.Second))).Round(time.Millisecond).String()
}

func shortCommit(commit *string) string {
	if commit == nil {
		return "-"
	}
	if len(*commit) > 12 {
		return (*commit)[:12]
	}
	return *commit
}
