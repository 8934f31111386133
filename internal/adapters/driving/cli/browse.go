package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui"
	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var (
	browseLimit     int
	browseCategory  string
	browseDocType   string
	browseThreshold float64
)

// errNotTerminal is returned when browse is run without an interactive stdin.
var errNotTerminal = errors.New("browse needs an interactive terminal; use search instead")

// Replaced in tests.
var runBrowser = func(app *tui.App) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errNotTerminal
	}
	return app.Run()
}

var browseCmd = &cobra.Command{
	Use:   "browse [query]",
	Short: "Browse the knowledge base interactively",
	Long: `Opens a terminal browser over hybrid search. Type a query, walk the
ranked hits and press enter to read a document. Press t to cycle the
document type filter and f to switch to the fallback embedding space.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().IntVarP(&browseLimit, "limit", "n", 20, "maximum number of results per query")
	browseCmd.Flags().StringVar(&browseCategory, "category", "", "restrict to a category (e.g. jurisprudence)")
	browseCmd.Flags().StringVar(&browseDocType, "doc-type", "", "start with a document type filter")
	browseCmd.Flags().Float64Var(&browseThreshold, "threshold", 0, "minimum vector similarity (0-1)")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	if browseCategory != "" && !domain.Category(browseCategory).IsValid() {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, browseCategory)
	}
	docType := domain.DocumentType(strings.ToUpper(browseDocType))
	if docType != "" && !docType.IsValid() {
		return fmt.Errorf("%w: unknown document type %q", domain.ErrInvalidInput, browseDocType)
	}

	app, err := tui.NewApp(&tui.Ports{Search: searchService, Documents: ingestionService}, tui.Options{
		Filter: domain.SearchFilter{
			Category: domain.Category(browseCategory),
			DocType:  docType,
		},
		Limit:     browseLimit,
		Threshold: browseThreshold,
	})
	if err != nil {
		return err
	}
	app.WithContext(cmd.Context())
	if len(args) == 1 {
		app.WithQuery(args[0])
	}
	return runBrowser(app)
}
