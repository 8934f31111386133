package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var (
	scheduleHistoryLimit int
	scheduleHistoryJSON  bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and run scheduled tasks",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE:  runScheduleList,
}

var scheduleRunCmd = &cobra.Command{
	Use:       "run [task-id]",
	Short:     "Run a scheduled task now",
	Long:      `Runs one task immediately: ` + strings.Join(domain.BuiltinTaskIDs(), ", ") + `.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: domain.BuiltinTaskIDs(),
	RunE:      runScheduleRun,
}

var scheduleHistoryCmd = &cobra.Command{
	Use:       "history [task-id]",
	Short:     "Show the latest runs of a task",
	Args:      cobra.ExactArgs(1),
	ValidArgs: domain.BuiltinTaskIDs(),
	RunE:      runScheduleHistory,
}

func init() {
	scheduleHistoryCmd.Flags().IntVarP(&scheduleHistoryLimit, "limit", "n", 10, "number of runs to show")
	scheduleHistoryCmd.Flags().BoolVar(&scheduleHistoryJSON, "json", false, "output runs as JSON")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleHistoryCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleList(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}
	tasks, err := schedulerService.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No scheduled tasks. Run 'lexindex serve' once to register them.")
		return nil
	}

	p := newPainter(cmd)
	for i := range tasks {
		t := &tasks[i]
		state := p.Ok("enabled")
		if !t.Enabled {
			state = p.Warn("disabled")
		}
		cmd.Printf("%-20s every %-8s %s\n", t.ID, t.Interval, state)
		cmd.Printf("  last run: %s, next run: %s\n", formatWhen(t.LastRun), formatWhen(t.NextRun))
		if t.LastError != "" {
			cmd.Printf("  %s %s\n", p.Bad("last error:"), t.LastError)
		}
		if t.Failures > 1 {
			cmd.Printf("  %s\n", p.Warn("%d failed runs in a row", t.Failures))
		}
	}
	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}
	run, err := schedulerService.RunNow(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}

	p := newPainter(cmd)
	elapsed := run.Elapsed().Round(time.Millisecond)
	if !run.OK() {
		cmd.Printf("%s %s after %s: %s\n", run.TaskID, p.Bad("failed"), elapsed, run.Err)
		return nil
	}
	cmd.Printf("%s %s in %s, %d items\n", run.TaskID, p.Ok("done"), elapsed, run.Items)
	return nil
}

func runScheduleHistory(cmd *cobra.Command, args []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}
	if scheduleHistoryLimit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", domain.ErrInvalidInput)
	}
	runs, err := schedulerService.History(cmd.Context(), args[0], scheduleHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to read history of %s: %w", args[0], err)
	}
	if scheduleHistoryJSON {
		return printJSON(cmd, runs)
	}
	if len(runs) == 0 {
		cmd.Printf("%s has not run yet.\n", args[0])
		return nil
	}

	p := newPainter(cmd)
	for i := range runs {
		r := &runs[i]
		outcome := p.Ok("ok    ")
		if !r.OK() {
			outcome = p.Bad("failed")
		}
		cmd.Printf("%s  %s  %-8s %8s  %5d items", formatWhen(r.StartedAt), outcome, r.Trigger,
			r.Elapsed().Round(time.Millisecond), r.Items)
		if r.Err != "" {
			cmd.Printf("  %s", r.Err)
		}
		cmd.Println()
	}
	return nil
}
