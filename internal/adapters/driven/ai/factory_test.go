package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// fakeOllama answers the model listing used by Ping.
func fakeOllama(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":"unavailable"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	// Should not panic
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantDims int
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured settings", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:     "openai without key is unconfigured",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name: "ollama with known model",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "mxbai-embed-large",
			},
			wantDims: 1024,
		},
		{
			name: "ollama with unknown model uses default dimensions",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "custom-embed",
			},
			wantDims: 768,
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "sk-test",
				Model:    "text-embedding-3-large",
			},
			wantDims: 3072,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateEmbeddingService_InvalidURL(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  "://bad",
	})
	assert.Error(t, err)
	assert.Nil(t, svc)
}

func TestValidateEmbeddingConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(nil))
	})

	t.Run("reachable ollama", func(t *testing.T) {
		srv := fakeOllama(t, http.StatusOK)
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		assert.NoError(t, err)
	})

	t.Run("failing ollama", func(t *testing.T) {
		srv := fakeOllama(t, http.StatusInternalServerError)
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		assert.Error(t, err)
	})
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("unconfigured returns nil", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{})
		assert.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("reachable", func(t *testing.T) {
		srv := fakeOllama(t, http.StatusOK)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
			Model:    "nomic-embed-text",
		})
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Equal(t, "nomic-embed-text", svc.ModelName())
	})

	t.Run("unreachable wraps ErrEmbeddingUnavailable", func(t *testing.T) {
		srv := fakeOllama(t, http.StatusServiceUnavailable)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Nil(t, svc)
	})
}

func TestInit(t *testing.T) {
	t.Run("primary only", func(t *testing.T) {
		result := Init(domain.EmbeddingConfig{
			Primary:  domain.EmbeddingSettings{Provider: domain.AIProviderOllama},
			Fallback: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			Timeout:  time.Second,
		})
		defer result.Close()

		assert.NotNil(t, result.Primary)
		assert.Nil(t, result.Fallback)
		assert.Empty(t, result.Warnings)
	})

	t.Run("both providers", func(t *testing.T) {
		result := Init(domain.EmbeddingConfig{
			Primary:  domain.EmbeddingSettings{Provider: domain.AIProviderOllama},
			Fallback: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk-test"},
		})
		defer result.Close()

		assert.NotNil(t, result.Primary)
		assert.NotNil(t, result.Fallback)
	})

	t.Run("broken primary becomes a warning", func(t *testing.T) {
		result := Init(domain.EmbeddingConfig{
			Primary: domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: "://bad"},
		})

		assert.Nil(t, result.Primary)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "primary embedding")
	})
}
