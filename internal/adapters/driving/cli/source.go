package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage crawl sources",
	Long:  `Import, list, inspect and remove the Drive folders and web domains that lexindex crawls.`,
}

var sourceImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import sources from a YAML file",
	Long: `Reads a YAML file with a top-level "sources:" list and creates or
updates each source. Existing sources keep their creation and last crawl times.

Example:
  sources:
    - id: juris-drive
      name: Jurisprudence
      kind: drive
      folder_id: 1AbCdEf
      category: jurisprudence
      quota:
        per_hour: 100`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceImport,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE:  runSourceList,
}

var sourceShowCmd = &cobra.Command{
	Use:   "show [source-id]",
	Short: "Show a source's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceShow,
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove [source-id]",
	Short: "Remove a source and its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceRemove,
}

func init() {
	sourceCmd.AddCommand(sourceImportCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceShowCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSourceImport(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	sources, err := sourceService.Import(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	cmd.Printf("Imported %d sources:\n", len(sources))
	for i := range sources {
		cmd.Printf("  %s  %s\n", sources[i].ID, sources[i].Name)
	}
	return nil
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	sources, err := sourceService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	if len(sources) == 0 {
		cmd.Println("No sources configured. Use 'lexindex source import' to add some.")
		return nil
	}

	cmd.Println("Configured sources:")
	for i := range sources {
		state := "active"
		if !sources[i].Active {
			state = "inactive"
		}
		cmd.Printf("  %-20s %-6s %-16s %-8s last crawl: %s\n",
			sources[i].ID, sources[i].Kind, sources[i].Category, state, formatWhen(sources[i].LastCrawlAt))
	}
	return nil
}

func runSourceShow(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	src, err := sourceService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}

	cmd.Printf("ID:          %s\n", src.ID)
	cmd.Printf("Name:        %s\n", src.Name)
	cmd.Printf("Kind:        %s\n", src.Kind)
	if folder := src.FolderID(); folder != "" {
		cmd.Printf("Folder:      %s\n", folder)
	}
	if ds, ok := src.DriveSettings(); ok {
		cmd.Printf("Recursive:   %t\n", ds.Recursive)
		if len(ds.FileTypes) > 0 {
			cmd.Printf("File types:  %v\n", ds.FileTypes)
		}
	}
	cmd.Printf("Category:    %s\n", valueOr(string(src.Category), "-"))
	cmd.Printf("Doc type:    %s\n", valueOr(string(src.DocType), "-"))
	cmd.Printf("Active:      %t\n", src.Active)

	crawl := src.Crawl.WithDefaults()
	cmd.Printf("Max pages:   %d\n", crawl.MaxPages)
	cmd.Printf("Max size:    %d MB\n", crawl.MaxFileSize/(1024*1024))
	cmd.Printf("Rate limit:  %s\n", crawl.RateLimitDelay)
	cmd.Printf("Quota:       %s/hour, %s/day\n", quotaValue(src.Quota.MaxPagesPerHour), quotaValue(src.Quota.MaxPagesPerDay))
	cmd.Printf("Last crawl:  %s\n", formatWhen(src.LastCrawlAt))
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	if err := sourceService.Remove(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("source %s not found", args[0])
		}
		return fmt.Errorf("failed to remove source: %w", err)
	}
	cmd.Printf("Removed source: %s\n", args[0])
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func quotaValue(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
