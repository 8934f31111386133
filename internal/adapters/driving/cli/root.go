// Package cli provides the lexindex command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// version is overridden at build time with -ldflags.
var version = "dev"

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	Verbose   bool
	DataDir   string
	ConfigDir string
}

// Services are the driving ports the commands use. Unset ports make the
// commands that need them fail with "... not configured".
type Services struct {
	Sources     driving.SourceService
	Crawler     driving.Crawler
	Monitor     driving.HealthMonitor
	Ingestion   driving.IngestionService
	Embeddings  driving.EmbeddingGenerator
	Search      driving.SearchService
	Accelerator driving.AcceleratorService
	Reprocess   driving.ReprocessService
	Settings    driving.SettingsService
	Scheduler   driving.Scheduler
}

// Initialiser builds the services once flags are parsed. The returned
// cleanup runs after the command finishes.
type Initialiser func(opts GlobalOptions) (Services, func(), error)

var (
	globalOpts  GlobalOptions
	initialiser Initialiser
	cleanup     func()

	sourceService      driving.SourceService
	crawlerService     driving.Crawler
	healthMonitor      driving.HealthMonitor
	ingestionService   driving.IngestionService
	embeddingGenerator driving.EmbeddingGenerator
	searchService      driving.SearchService
	acceleratorService driving.AcceleratorService
	reprocessService   driving.ReprocessService
	settingsService    driving.SettingsService
	schedulerService   driving.Scheduler
)

// noServices marks commands that run without opening the stores.
const noServices = "lexindex.no-services"

var rootCmd = &cobra.Command{
	Use:   "lexindex",
	Short: "Legal knowledge base ingestion and retrieval",
	Long: `lexindex crawls Google Drive folders of legal documents, splits and
chunks them, embeds the chunks with a primary and a fallback provider, and
answers hybrid (semantic + keyword) queries over the resulting knowledge base.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(globalOpts.Verbose)
		if initialiser == nil || cmd.Annotations[noServices] != "" {
			return nil
		}
		services, done, err := initialiser(globalOpts)
		if err != nil {
			return err
		}
		SetServices(services)
		cleanup = done
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&globalOpts.DataDir, "data-dir", "", "data directory (default ~/.lexindex/data)")
	flags.StringVar(&globalOpts.ConfigDir, "config-dir", "", "config directory (default ~/.lexindex)")
}

// SetServices installs the driving ports used by the commands.
func SetServices(s Services) {
	sourceService = s.Sources
	crawlerService = s.Crawler
	healthMonitor = s.Monitor
	ingestionService = s.Ingestion
	embeddingGenerator = s.Embeddings
	searchService = s.Search
	acceleratorService = s.Accelerator
	reprocessService = s.Reprocess
	settingsService = s.Settings
	schedulerService = s.Scheduler
}

// SetInitialiser registers the function that wires services after flag parsing.
func SetInitialiser(fn Initialiser) {
	initialiser = fn
}

// SetVersion sets the version reported by "lexindex version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
