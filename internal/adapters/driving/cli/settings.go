package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var settingsFallback bool

var embeddingProviders = []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in ~/.lexindex/config.toml.

Environment variables (OPENAI_API_KEY, OLLAMA_HOST, REDIS_URL,
LEXINDEX_USE_REDISEARCH, GOOGLE_APPLICATION_CREDENTIALS, CRON_SECRET)
take precedence over stored values.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Stores one dotted key. Examples:

  lexindex settings set search.vector_weight 0.6
  lexindex settings set search.fusion rrf
  lexindex settings set accelerator.enabled true
  lexindex settings set scheduler.crawl_interval_minutes 120
  lexindex settings set enrichment.provider openai`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure an embedding provider interactively",
	Long:  `Selects the provider, model and API key of the primary (or, with --fallback, the fallback) embedding provider.`,
	RunE:  runSettingsEmbedding,
}

func init() {
	settingsEmbeddingCmd.Flags().BoolVar(&settingsFallback, "fallback", false, "configure the fallback provider")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, "Primary", settings.Embedding.Primary)
	printProvider(cmd, "Fallback", settings.Embedding.Fallback)
	cmd.Printf("  Batch size: %d\n", settings.Embedding.BatchSize)
	cmd.Printf("  Timeout: %s\n", settings.Embedding.Timeout)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Weights: vector %.2f, keyword %.2f\n", settings.Search.VectorWeight, settings.Search.LexicalWeight)
	cmd.Printf("  Fusion: %s\n", settings.Search.Fusion)
	cmd.Println()

	cmd.Println("[Accelerator]")
	if settings.Accelerator.Enabled {
		cmd.Printf("  Enabled: yes (%s)\n", settings.Accelerator.RedisURL)
	} else {
		cmd.Println("  Enabled: no")
	}
	cmd.Println()

	cmd.Println("[Splitting]")
	cmd.Printf("  Sections: %d-%d characters\n", settings.Splitter.MinSectionSize, settings.Splitter.MaxSectionSize)
	cmd.Printf("  Chunks: %d characters, %d overlap\n", settings.Chunker.Size, settings.Chunker.Overlap)
	cmd.Println()

	cmd.Println("[Enrichment]")
	if settings.Enrichment.IsEnabled() {
		cmd.Printf("  Summariser: %s, %s\n", settings.Enrichment.Provider.Description(), settings.Enrichment.Model)
	} else {
		cmd.Println("  Summariser: none (descriptions from leading text)")
	}
	cmd.Println()

	cmd.Println("[Drive]")
	switch {
	case settings.Drive.CredentialsFile != "":
		cmd.Printf("  Credentials: %s\n", settings.Drive.CredentialsFile)
	case settings.Drive.IsConfigured():
		cmd.Printf("  OAuth client: %s\n", settings.Drive.ClientID)
	default:
		cmd.Println("  Credentials: (not set)")
	}
	cmd.Println()

	cmd.Println("[Server]")
	cmd.Printf("  Address: %s\n", settings.Server.Addr)
	if settings.Server.CronSecret != "" {
		cmd.Printf("  Cron secret: %s\n", maskAPIKey(settings.Server.CronSecret))
	} else {
		cmd.Println("  Cron secret: (not set, admin routes are open)")
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %t\n", settings.Scheduler.Enabled)
	cmd.Printf("  Metrics retention: %d days\n", int(settings.MetricsRetention.Hours()/24))
	cmd.Println()

	if !settings.Embedding.Primary.IsConfigured() && !settings.Embedding.Fallback.IsConfigured() {
		cmd.Println("Warning: no embedding provider is configured; search is keyword only.")
		cmd.Println("Run 'lexindex settings embedding' to configure one.")
	}
	return nil
}

func printProvider(cmd *cobra.Command, label string, e domain.EmbeddingSettings) {
	status := "configured"
	if !e.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  %s: %s, %s (%s)\n", label, e.Provider.Description(), e.Model, status)
	if e.BaseURL != "" {
		cmd.Printf("    Base URL: %s\n", e.BaseURL)
	}
	if e.Provider.RequiresAPIKey() {
		if e.APIKey != "" {
			cmd.Printf("    API Key: %s\n", maskAPIKey(e.APIKey))
		} else {
			cmd.Println("    API Key: (not set)")
		}
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader, settingsFallback)
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader, fallback bool) error {
	role := "primary"
	if fallback {
		role = "fallback"
	}
	cmd.Printf("Select the %s embedding provider\n", role)
	for i, p := range embeddingProviders {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(embeddingProviders), 1)
	provider := embeddingProviders[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key (empty to use OPENAI_API_KEY): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(fallback, provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(cmd.Context(), fallback); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("%s embedding provider configured: %s (%s)\n", role, provider.Description(), model)
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n') //nolint:errcheck // EOF yields the default
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo on a terminal and falls back to a plain line.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if password, err := term.ReadPassword(int(f.Fd())); err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
