package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var acceleratorCmd = &cobra.Command{
	Use:   "accelerator",
	Short: "Manage the RediSearch accelerator index",
	Long: `The accelerator mirrors chunks into a RediSearch index for faster
vector and keyword lookups. It is enabled with accelerator.enabled or
LEXINDEX_USE_REDISEARCH=true; the database stays the source of truth.`,
}

var acceleratorRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-mirror every active chunk",
	RunE:  runAcceleratorRebuild,
}

var acceleratorStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show accelerator index statistics",
	RunE:  runAcceleratorStats,
}

var acceleratorClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every mirrored entry",
	RunE:  runAcceleratorClear,
}

func init() {
	acceleratorCmd.AddCommand(acceleratorRebuildCmd)
	acceleratorCmd.AddCommand(acceleratorStatsCmd)
	acceleratorCmd.AddCommand(acceleratorClearCmd)
	rootCmd.AddCommand(acceleratorCmd)
}

func runAcceleratorRebuild(cmd *cobra.Command, _ []string) error {
	if acceleratorService == nil {
		return errors.New("accelerator not configured")
	}
	n, err := acceleratorService.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Printf("Mirrored %d chunks\n", n)
	return nil
}

func runAcceleratorStats(cmd *cobra.Command, _ []string) error {
	if acceleratorService == nil {
		return errors.New("accelerator not configured")
	}
	stats, err := acceleratorService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	if !stats.Enabled {
		cmd.Println("Accelerator: disabled")
		return nil
	}
	cmd.Printf("Accelerator: enabled (%s)\n", stats.IndexName)
	cmd.Printf("  Documents: %d\n", stats.NumDocs)
	cmd.Printf("  Records:   %d\n", stats.NumRecords)
	return nil
}

func runAcceleratorClear(cmd *cobra.Command, _ []string) error {
	if acceleratorService == nil {
		return errors.New("accelerator not configured")
	}
	if err := acceleratorService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	cmd.Println("Accelerator index cleared")
	return nil
}
