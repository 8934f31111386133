// Package ollama provides a summariser adapter using a local Ollama model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Summariser implements the interface.
var _ driven.Summariser = (*Summariser)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 300 * time.Second // local models can be slow on first load
)

// Config holds configuration for the Ollama summariser.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the generation model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s).
	Timeout time.Duration
}

// Summariser writes document descriptions with Ollama.
type Summariser struct {
	client *api.Client
	model  string
}

// NewSummariser creates a new Ollama summariser.
func NewSummariser(cfg Config) (*Summariser, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url %q: %w", cfg.BaseURL, err)
	}

	return &Summariser{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

const summarisePrompt = `Write a description of the following legal document in %d characters or less.
Use the same language as the document (French or Arabic). Name the kind of text,
its subject and its key provisions or holding. Return ONLY the description.

Document:
%s

Description:`

// Summarise creates a description of document content.
func (s *Summariser) Summarise(ctx context.Context, content string, maxLength int) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  s.model,
		Prompt: fmt.Sprintf(summarisePrompt, maxLength, content),
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.3,
			"num_predict": maxLength / 2,
		},
	}

	var out strings.Builder
	err := s.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama summarise: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// ModelName returns the name of the generation model being used.
func (s *Summariser) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by listing local models.
func (s *Summariser) Ping(ctx context.Context) error {
	if _, err := s.client.List(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *Summariser) Close() error {
	return nil
}
