package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// Space returns the embedding column populated by this provider.
func (p AIProvider) Space() EmbeddingSpace {
	if p == AIProviderOpenAI {
		return EmbeddingSpaceOpenAI
	}
	return EmbeddingSpaceOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds one embedding provider's configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingConfig holds the primary and fallback providers and batching limits.
type EmbeddingConfig struct {
	Primary   EmbeddingSettings
	Fallback  EmbeddingSettings
	BatchSize int
	Timeout   time.Duration
}

// SearchSettings holds retrieval behaviour configuration.
type SearchSettings struct {
	VectorWeight  float64
	LexicalWeight float64
	Fusion        FusionMode
}

// AcceleratorSettings configures the optional mirrored index.
type AcceleratorSettings struct {
	Enabled  bool
	RedisURL string
}

// SplitterSettings bounds section sizes.
type SplitterSettings struct {
	MaxSectionSize int
	MinSectionSize int
}

// ChunkerSettings bounds chunk sizes.
type ChunkerSettings struct {
	Size    int
	Overlap int
}

// DriveAuthSettings holds drive credentials. Either a credentials file
// (service account) or an OAuth client with a refresh token.
type DriveAuthSettings struct {
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
}

// IsConfigured returns true if some drive credential is present.
func (d DriveAuthSettings) IsConfigured() bool {
	return d.CredentialsFile != "" || (d.ClientID != "" && d.RefreshToken != "")
}

// EnrichmentSettings selects the language model that writes missing
// document descriptions during reprocessing. An empty provider keeps the
// extractive description.
type EnrichmentSettings struct {
	Provider AIProvider
	Model    string
}

// IsEnabled returns true if a summarising model is selected.
func (e EnrichmentSettings) IsEnabled() bool {
	return e.Provider.IsValid()
}

// ServerSettings configures the HTTP admin API.
type ServerSettings struct {
	Addr       string
	CronSecret string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingConfig
	Search      SearchSettings
	Accelerator AcceleratorSettings
	Splitter    SplitterSettings
	Chunker     ChunkerSettings
	Drive       DriveAuthSettings
	Enrichment  EnrichmentSettings
	Server      ServerSettings
	Scheduler   SchedulerConfig

	// MetricsRetention is how long health buckets are kept.
	MetricsRetention time.Duration
}

// DefaultAppSettings returns settings with sensible defaults.
// The primary provider is a local Ollama; the fallback is left unconfigured
// until an API key is supplied.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingConfig{
			Primary: EmbeddingSettings{
				Provider: AIProviderOllama,
				Model:    DefaultEmbeddingModels()[AIProviderOllama],
			},
			Fallback: EmbeddingSettings{
				Provider: AIProviderOpenAI,
				Model:    DefaultEmbeddingModels()[AIProviderOpenAI],
			},
			BatchSize: 100,
			Timeout:   30 * time.Second,
		},
		Search: SearchSettings{
			VectorWeight:  DefaultVectorWeight,
			LexicalWeight: DefaultLexicalWeight,
			Fusion:        FusionWeighted,
		},
		Splitter: SplitterSettings{
			MaxSectionSize: 45000,
			MinSectionSize: 1000,
		},
		Chunker: ChunkerSettings{
			Size:    1200,
			Overlap: 200,
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
		Scheduler:        DefaultSchedulerConfig(),
		MetricsRetention: 30 * 24 * time.Hour,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultSummaryModels returns default chat models for description writing.
func DefaultSummaryModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
