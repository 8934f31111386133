package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var (
	searchLimit     int
	searchCategory  string
	searchDocType   string
	searchThreshold float64
	searchFallback  bool
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Performs hybrid search across all indexed chunks.
Combines keyword (full-text) rank and semantic (vector) similarity, weighted
0.7 vector / 0.3 keyword by default. Without an embedding provider the
ranking is keyword only.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "restrict to a category (e.g. jurisprudence)")
	searchCmd.Flags().StringVar(&searchDocType, "doc-type", "", "restrict to a document type (TEXTES, JURIS, PROC, TEMPLATES, DOCTRINE)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum vector similarity (0-1)")
	searchCmd.Flags().BoolVar(&searchFallback, "fallback", false, "search the fallback embedding space")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	query := domain.HybridQuery{
		Query: args[0],
		Filter: domain.SearchFilter{
			Category: domain.Category(searchCategory),
			DocType:  domain.DocumentType(searchDocType),
		},
		Limit:               searchLimit,
		Threshold:           searchThreshold,
		UseFallbackProvider: searchFallback,
	}

	hits, err := searchService.HybridSearch(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, hits)
	}
	return outputSearchTable(cmd, hits)
}

func outputSearchTable(cmd *cobra.Command, hits []domain.HybridHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		// Format: [N] Title (score) category/doc_type
		title := hits[i].Title
		if title == "" {
			title = hits[i].DocumentID
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, hits[i].HybridScore)
		cmd.Printf("      %s / %s  sim=%.3f lex=%.3f\n",
			hits[i].Category, hits[i].DocType, hits[i].Similarity, hits[i].LexicalRank)
		if hits[i].ContentSnippet != "" {
			cmd.Printf("      %s\n", hits[i].ContentSnippet)
		}
		cmd.Println()
	}
	return nil
}
