package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var (
	reprocessBatchSize int
	reprocessCategory  string
	reprocessThreshold int
	reprocessNoReindex bool
	reprocessDryRun    bool
	reprocessJSON      bool
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Enrich documents with low metadata completeness",
	Long: `Selects active documents whose completeness score is missing or below
the threshold (lowest first), derives a description and tags from their text,
recomputes the score and, unless --no-reindex is given, rebuilds their chunks.`,
	RunE: runReprocess,
}

var reprocessStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count documents eligible for reprocessing",
	RunE:  runReprocessStats,
}

func init() {
	flags := reprocessCmd.PersistentFlags()
	flags.IntVar(&reprocessThreshold, "threshold", domain.DefaultCompletenessThreshold, "completeness threshold (0-100)")
	flags.StringVar(&reprocessCategory, "category", "", "restrict to one category")

	reprocessCmd.Flags().IntVar(&reprocessBatchSize, "batch-size", domain.DefaultReprocessBatchSize, "documents per run (max 50)")
	reprocessCmd.Flags().BoolVar(&reprocessNoReindex, "no-reindex", false, "skip rebuilding chunks after enrichment")
	reprocessCmd.Flags().BoolVar(&reprocessDryRun, "dry-run", false, "list the selection without changing anything")
	flags.BoolVar(&reprocessJSON, "json", false, "output the result as JSON")

	reprocessCmd.AddCommand(reprocessStatsCmd)
	rootCmd.AddCommand(reprocessCmd)
}

func runReprocess(cmd *cobra.Command, _ []string) error {
	if reprocessService == nil {
		return errors.New("reprocess service not configured")
	}
	opts := domain.ReprocessOptions{
		BatchSize:             reprocessBatchSize,
		Category:              domain.Category(reprocessCategory),
		CompletenessThreshold: reprocessThreshold,
		ReprocessAfter:        !reprocessNoReindex,
		DryRun:                reprocessDryRun,
	}

	result, err := reprocessService.Reprocess(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}
	if reprocessJSON {
		return printJSON(cmd, result)
	}

	if result.Selected == 0 {
		cmd.Println("No documents need reprocessing.")
		return nil
	}

	p := newPainter(cmd)
	if result.DryRun {
		cmd.Printf("Would reprocess %d documents:\n", result.Selected)
	} else {
		cmd.Printf("Reprocessed %d documents: %s succeeded, %s failed\n",
			result.Selected, p.Ok("%d", result.Succeeded), p.Bad("%d", result.Failed))
	}
	for i := range result.Items {
		item := &result.Items[i]
		before := "-"
		if item.PreviousCompleteness != nil {
			before = fmt.Sprint(*item.PreviousCompleteness)
		}
		switch {
		case result.DryRun:
			cmd.Printf("  %s  %-40s score %s\n", item.DocumentID, item.Title, before)
		case item.Success:
			cmd.Printf("  %s  %-40s %s -> %s  (%d chunks, %s)\n", item.DocumentID, item.Title,
				before, p.Ok("%d", item.NewCompleteness), item.ChunksIndexed, item.Duration.Round(time.Millisecond))
		default:
			cmd.Printf("  %s  %-40s %s\n", item.DocumentID, item.Title, p.Bad("%s", item.Error))
		}
	}
	return nil
}

func runReprocessStats(cmd *cobra.Command, _ []string) error {
	if reprocessService == nil {
		return errors.New("reprocess service not configured")
	}
	counts, err := reprocessService.EligibleCounts(cmd.Context(), reprocessThreshold)
	if err != nil {
		return fmt.Errorf("failed to count eligible documents: %w", err)
	}
	if reprocessJSON {
		return printJSON(cmd, counts)
	}

	cmd.Printf("Documents below %d: %d\n", counts.Threshold, counts.Total)
	for _, c := range slices.Sorted(maps.Keys(counts.ByCategory)) {
		cmd.Printf("  %-20s %d\n", c, counts.ByCategory[c])
	}
	return nil
}
