// Command lexindex crawls legal documents from Google Drive into a searchable
// knowledge base and serves hybrid retrieval over it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/lexindex/internal/adapters/driven/accelerator/noop"
	"github.com/custodia-labs/lexindex/internal/adapters/driven/accelerator/redisearch"
	"github.com/custodia-labs/lexindex/internal/adapters/driven/ai"
	"github.com/custodia-labs/lexindex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexindex/internal/adapters/driven/language"
	"github.com/custodia-labs/lexindex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexindex/internal/connectors/google/drive"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/services"
	"github.com/custodia-labs/lexindex/internal/logger"
	"github.com/custodia-labs/lexindex/internal/normalisers"
	"github.com/custodia-labs/lexindex/internal/postprocessors/chunker"
	"github.com/custodia-labs/lexindex/internal/splitter"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	cli.SetVersion(version)
	cli.SetInitialiser(initServices)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// initServices wires stores, adapters and services for one command run.
func initServices(opts cli.GlobalOptions) (cli.Services, func(), error) {
	ctx := context.Background()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// ==================== Storage ====================

	store, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("opening database: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })
	logger.Debug("database: %s", store.Path())

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		cleanup()
		return cli.Services{}, nil, fmt.Errorf("opening config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		cleanup()
		return cli.Services{}, nil, fmt.Errorf("loading settings: %w", err)
	}

	// ==================== Embeddings ====================

	embeddings := ai.Init(settings.Embedding)
	closers = append(closers, embeddings.Close)
	for _, w := range embeddings.Warnings {
		logger.Debug("%s", w)
	}

	var primary, fallback services.EmbeddingProvider
	if embeddings.Primary != nil {
		primary = services.EmbeddingProvider{Service: embeddings.Primary, Space: settings.Embedding.Primary.Provider.Space()}
	}
	if embeddings.Fallback != nil {
		fallback = services.EmbeddingProvider{Service: embeddings.Fallback, Space: settings.Embedding.Fallback.Provider.Space()}
	}
	generator := services.NewEmbeddingGenerator(store.KnowledgeStore(), primary, fallback,
		services.WithEmbedBatchSize(settings.Embedding.BatchSize),
	)

	// A nil interface, not a nil *EmbeddingGenerator, keeps search keyword-only.
	var queryEmbedder services.QueryEmbedder
	if embeddings.Primary != nil || embeddings.Fallback != nil {
		queryEmbedder = generator
	}

	// ==================== Accelerator ====================

	var accelerator driven.AcceleratorIndex = noop.New()
	if settings.Accelerator.Enabled {
		index, err := redisearch.New(ctx, settings.Accelerator.RedisURL)
		if err != nil {
			logger.Warn("accelerator unavailable, using the database only: %v", err)
		} else {
			accelerator = index
		}
	}
	closers = append(closers, func() { _ = accelerator.Close() })

	// ==================== Ingestion ====================

	monitor := services.NewHealthMonitor(store.SourceStore(), store.HealthStore())
	clients := drive.NewClientFactory(drive.DefaultConfig(settings.Drive))
	detector := language.New()
	sectionSplitter := splitter.New(splitter.Options{
		MaxSectionSize: settings.Splitter.MaxSectionSize,
		MinSectionSize: settings.Splitter.MinSectionSize,
	})
	textChunker := chunker.New(
		chunker.WithChunkSize(settings.Chunker.Size),
		chunker.WithOverlap(settings.Chunker.Overlap),
	)

	ingestion := services.NewIngestionService(
		store.KnowledgeStore(),
		store.PageRecordStore(),
		normalisers.NewDefaultRegistry(),
		sectionSplitter,
		textChunker,
		services.WithDriveClients(clients),
		services.WithLanguageDetector(detector),
		services.WithEmbeddings(generator),
		services.WithAccelerator(accelerator),
	)

	crawler := services.NewDriveCrawler(store.SourceStore(), store.PageRecordStore(), monitor, clients)
	crawler.SetIngestionService(ingestion)

	// ==================== Retrieval ====================

	search := services.NewHybridSearchService(store.KnowledgeStore(), queryEmbedder, accelerator,
		services.WithSearchSettings(settings.Search),
	)
	reprocessOpts := []services.ReprocessOption{services.WithReprocessLanguageDetector(detector)}
	summariser, err := ai.CreateSummariser(settings.Enrichment, settings.Embedding)
	switch {
	case err != nil:
		logger.Warn("description summariser unavailable: %v", err)
	case summariser != nil:
		closers = append(closers, func() { _ = summariser.Close() })
		reprocessOpts = append(reprocessOpts, services.WithSummariser(summariser))
	}
	reprocess := services.NewReprocessService(store.KnowledgeStore(), sectionSplitter, ingestion, reprocessOpts...)

	scheduler := services.NewScheduler(settings.Scheduler, store.SchedulerStore(), services.SchedulerTasks{
		Crawler:          crawler,
		Embeddings:       generator,
		Monitor:          monitor,
		MetricsRetention: settings.MetricsRetention,
	})

	return cli.Services{
		Sources:     services.NewSourceService(store.SourceStore(), store.PageRecordStore(), store.KnowledgeStore(), accelerator),
		Crawler:     crawler,
		Monitor:     monitor,
		Ingestion:   ingestion,
		Embeddings:  generator,
		Search:      search,
		Accelerator: services.NewAcceleratorService(store.KnowledgeStore(), accelerator),
		Reprocess:   reprocess,
		Settings:    settingsService,
		Scheduler:   scheduler,
	}, cleanup, nil
}
