package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/watcher"
	"github.com/custodia-labs/lexindex/internal/logger"
)

var (
	serveAddr      string
	serveWatch     string
	serveScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP admin API",
	Long: `Starts the HTTP API used by cron jobs and the admin dashboard.

Crawl and admin routes require the X-Cron-Secret header when a cron secret
is configured (server.cron_secret or CRON_SECRET). With --scheduler the
periodic crawl, backfill and metrics cleanup tasks run in the same process.
With --watch the given sources file is imported at start and again after
every change.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, :8080)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "sources YAML file to import and watch")
	serveCmd.Flags().BoolVar(&serveScheduler, "scheduler", true, "run the background scheduler")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	cfg := httpapi.Config{Addr: serveAddr}
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		if cfg.Addr == "" {
			cfg.Addr = settings.Server.Addr
		}
		cfg.CronSecret = settings.Server.CronSecret
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Search:     searchService,
		Monitor:    healthMonitor,
		Crawler:    crawlerService,
		Sources:    sourceService,
		Documents:  ingestionService,
		Embeddings: embeddingGenerator,
		Reprocess:  reprocessService,
	}, cfg)
	if err != nil {
		return err
	}
	if cfg.CronSecret == "" {
		logger.Warn("no cron secret configured: admin routes are unauthenticated")
	}

	var sourcesWatcher *watcher.Watcher
	if serveWatch != "" {
		if sourceService == nil {
			return errors.New("source service not configured")
		}
		sourcesWatcher, err = watcher.New(serveWatch, sourceService)
		if err != nil {
			return err
		}
	}

	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if serveScheduler && schedulerService != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler: %v", err)
			}
		}()
	}
	if sourcesWatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sourcesWatcher.Run(ctx); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	cmd.Printf("lexindex API listening on %s\n", server.Addr())
	runErr := server.Run(ctx)

	stop()
	if serveScheduler && schedulerService != nil {
		if err := schedulerService.Stop(); err != nil {
			logger.Warn("scheduler: stop: %v", err)
		}
	}
	wg.Wait()
	return runErr
}
