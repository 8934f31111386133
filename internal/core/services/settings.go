package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyPrimaryProvider  = "embedding.primary.provider"
	keyPrimaryModel     = "embedding.primary.model"
	keyPrimaryBaseURL   = "embedding.primary.base_url"
	keyPrimaryAPIKey    = "embedding.primary.api_key"
	keyFallbackProvider = "embedding.fallback.provider"
	keyFallbackModel    = "embedding.fallback.model"
	keyFallbackBaseURL  = "embedding.fallback.base_url"
	keyFallbackAPIKey   = "embedding.fallback.api_key"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedTimeout     = "embedding.timeout_seconds"

	keyAcceleratorEnabled = "accelerator.enabled"
	keyAcceleratorURL     = "accelerator.redis_url"

	keyVectorWeight  = "search.vector_weight"
	keyLexicalWeight = "search.lexical_weight"
	keyFusion        = "search.fusion"

	keyMaxSectionSize = "splitter.max_section_size"
	keyMinSectionSize = "splitter.min_section_size"
	keyChunkSize      = "chunker.size"
	keyChunkOverlap   = "chunker.overlap"

	keyDriveCredentials  = "drive.credentials_file"
	keyDriveClientID     = "drive.client_id"
	keyDriveClientSecret = "drive.client_secret"
	keyDriveRefreshToken = "drive.refresh_token"

	keyEnrichProvider = "enrichment.provider"
	keyEnrichModel    = "enrichment.model"

	keyServerAddr       = "server.addr"
	keyServerCronSecret = "server.cron_secret"

	keySchedulerEnabled  = "scheduler.enabled"
	keyCrawlInterval     = "scheduler.crawl_interval_minutes"
	keyBackfillInterval  = "scheduler.backfill_interval_minutes"
	keyMetricsRetainDays = "monitor.retention_days"
)

// Environment variables that override the config file.
const (
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvRedisURL          = "REDIS_URL"
	EnvUseRediSearch     = "LEXINDEX_USE_REDISEARCH"
	EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvCronSecret        = "CRON_SECRET"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindBool
	kindFloat
	kindProvider
	kindOptionalProvider
	kindFusion
)

// settingKeys lists every key Set accepts with its value kind.
var settingKeys = map[string]keyKind{
	keyPrimaryProvider: kindProvider, keyPrimaryModel: kindString, keyPrimaryBaseURL: kindString, keyPrimaryAPIKey: kindString,
	keyFallbackProvider: kindProvider, keyFallbackModel: kindString, keyFallbackBaseURL: kindString, keyFallbackAPIKey: kindString,
	keyEmbedBatchSize: kindInt, keyEmbedTimeout: kindInt,
	keyAcceleratorEnabled: kindBool, keyAcceleratorURL: kindString,
	keyVectorWeight: kindFloat, keyLexicalWeight: kindFloat, keyFusion: kindFusion,
	keyMaxSectionSize: kindInt, keyMinSectionSize: kindInt, keyChunkSize: kindInt, keyChunkOverlap: kindInt,
	keyDriveCredentials: kindString, keyDriveClientID: kindString, keyDriveClientSecret: kindString, keyDriveRefreshToken: kindString,
	keyEnrichProvider: kindOptionalProvider, keyEnrichModel: kindString,
	keyServerAddr: kindString, keyServerCronSecret: kindString,
	keySchedulerEnabled: kindBool, keyCrawlInterval: kindInt, keyBackfillInterval: kindInt,
	keyMetricsRetainDays: kindInt,
}

// SettingKeys returns the recognised configuration keys, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Environment variables take
// precedence over stored values.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingConfig{
			Primary: domain.EmbeddingSettings{
				Provider: s.getProvider(keyPrimaryProvider, defaults.Embedding.Primary.Provider),
				Model:    s.getString(keyPrimaryModel, defaults.Embedding.Primary.Model),
				BaseURL:  s.configStore.GetString(keyPrimaryBaseURL), // No default - adapters pick their own
				APIKey:   s.configStore.GetString(keyPrimaryAPIKey),
			},
			Fallback: domain.EmbeddingSettings{
				Provider: s.getProvider(keyFallbackProvider, defaults.Embedding.Fallback.Provider),
				Model:    s.getString(keyFallbackModel, defaults.Embedding.Fallback.Model),
				BaseURL:  s.configStore.GetString(keyFallbackBaseURL),
				APIKey:   s.configStore.GetString(keyFallbackAPIKey),
			},
			BatchSize: s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			Timeout:   s.getSeconds(keyEmbedTimeout, defaults.Embedding.Timeout),
		},
		Search: domain.SearchSettings{
			VectorWeight:  s.getFloat(keyVectorWeight, defaults.Search.VectorWeight),
			LexicalWeight: s.getFloat(keyLexicalWeight, defaults.Search.LexicalWeight),
			Fusion:        s.getFusion(defaults.Search.Fusion),
		},
		Accelerator: domain.AcceleratorSettings{
			Enabled:  s.getBool(keyAcceleratorEnabled, defaults.Accelerator.Enabled),
			RedisURL: s.configStore.GetString(keyAcceleratorURL),
		},
		Splitter: domain.SplitterSettings{
			MaxSectionSize: s.getInt(keyMaxSectionSize, defaults.Splitter.MaxSectionSize),
			MinSectionSize: s.getInt(keyMinSectionSize, defaults.Splitter.MinSectionSize),
		},
		Chunker: domain.ChunkerSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunker.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunker.Overlap),
		},
		Drive: domain.DriveAuthSettings{
			CredentialsFile: s.configStore.GetString(keyDriveCredentials),
			ClientID:        s.configStore.GetString(keyDriveClientID),
			ClientSecret:    s.configStore.GetString(keyDriveClientSecret),
			RefreshToken:    s.configStore.GetString(keyDriveRefreshToken),
		},
		Enrichment: s.getEnrichment(),
		Server: domain.ServerSettings{
			Addr:       s.getString(keyServerAddr, defaults.Server.Addr),
			CronSecret: s.configStore.GetString(keyServerCronSecret),
		},
		Scheduler:        s.GetSchedulerConfig(),
		MetricsRetention: s.getDays(keyMetricsRetainDays, defaults.MetricsRetention),
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv overlays environment variables.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if key := s.getenv(EnvOpenAIAPIKey); key != "" {
		for _, e := range []*domain.EmbeddingSettings{&settings.Embedding.Primary, &settings.Embedding.Fallback} {
			if e.Provider == domain.AIProviderOpenAI {
				e.APIKey = key
			}
		}
	}
	if host := s.getenv(EnvOllamaHost); host != "" {
		for _, e := range []*domain.EmbeddingSettings{&settings.Embedding.Primary, &settings.Embedding.Fallback} {
			if e.Provider == domain.AIProviderOllama {
				e.BaseURL = host
			}
		}
	}
	if url := s.getenv(EnvRedisURL); url != "" {
		settings.Accelerator.RedisURL = url
	}
	if v := s.getenv(EnvUseRediSearch); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			settings.Accelerator.Enabled = enabled
		}
	}
	if creds := s.getenv(EnvGoogleCredentials); creds != "" {
		settings.Drive.CredentialsFile = creds
	}
	if secret := s.getenv(EnvCronSecret); secret != "" {
		settings.Server.CronSecret = secret
	}
}

// Set stores a single dotted configuration key. String values are
// converted to the key's type.
func (s *SettingsService) Set(key string, value any) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	converted, err := convertSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := s.configStore.Set(key, converted); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func convertSetting(kind keyKind, value any) (any, error) {
	str, isString := value.(string)
	if !isString {
		return value, nil
	}
	str = strings.TrimSpace(str)

	switch kind {
	case kindInt:
		return strconv.Atoi(str)
	case kindBool:
		return strconv.ParseBool(str)
	case kindFloat:
		f, err := strconv.ParseFloat(str, 64)
		if err == nil && (f < 0 || f > 1) {
			return nil, fmt.Errorf("weight %v outside [0,1]", f)
		}
		return f, err
	case kindProvider:
		if !domain.AIProvider(str).IsValid() {
			return nil, fmt.Errorf("invalid provider %q", str)
		}
	case kindOptionalProvider:
		if str == "none" {
			return "", nil
		}
		if str != "" && !domain.AIProvider(str).IsValid() {
			return nil, fmt.Errorf("invalid provider %q", str)
		}
	case kindFusion:
		if !domain.FusionMode(str).IsValid() {
			return nil, fmt.Errorf("invalid fusion mode %q", str)
		}
	}
	return str, nil
}

// SetEmbeddingProvider configures the primary or fallback embedding provider.
func (s *SettingsService) SetEmbeddingProvider(fallback bool, provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvOpenAIAPIKey) == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, provider)
	}

	keyProvider, keyModel, keyAPIKey := keyPrimaryProvider, keyPrimaryModel, keyPrimaryAPIKey
	if fallback {
		keyProvider, keyModel, keyAPIKey = keyFallbackProvider, keyFallbackModel, keyFallbackAPIKey
	}

	if err := s.configStore.Set(keyProvider, provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyModel, model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyAPIKey, apiKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig checks the primary or fallback provider with a
// probe embedding.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context, fallback bool) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	target := &settings.Embedding.Primary
	if fallback {
		target = &settings.Embedding.Fallback
	}
	return s.aiValidator.ValidateEmbedding(ctx, target)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		defaults.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	intervals := map[string]string{
		domain.TaskIDSourceCrawl:       keyCrawlInterval,
		domain.TaskIDEmbeddingBackfill: keyBackfillInterval,
	}
	for taskID, key := range intervals {
		if minutes := s.configStore.GetInt(key); minutes > 0 {
			taskCfg := defaults.Tasks[taskID]
			taskCfg.Interval = time.Duration(minutes) * time.Minute
			defaults.Tasks[taskID] = taskCfg
		}
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	if n := s.configStore.GetInt(key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func (s *SettingsService) getDays(key string, defaultVal time.Duration) time.Duration {
	if n := s.configStore.GetInt(key); n > 0 {
		return time.Duration(n) * 24 * time.Hour
	}
	return defaultVal
}

func (s *SettingsService) getFusion(defaultVal domain.FusionMode) domain.FusionMode {
	mode := domain.FusionMode(s.configStore.GetString(keyFusion))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

// getEnrichment has no default provider: descriptions stay extractive until
// one is chosen.
func (s *SettingsService) getEnrichment() domain.EnrichmentSettings {
	provider := domain.AIProvider(s.configStore.GetString(keyEnrichProvider))
	if !provider.IsValid() {
		return domain.EnrichmentSettings{}
	}
	return domain.EnrichmentSettings{
		Provider: provider,
		Model:    s.getString(keyEnrichModel, domain.DefaultSummaryModels()[provider]),
	}
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
