// Package openai provides a summariser adapter using OpenAI chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Summariser implements the interface.
var _ driven.Summariser = (*Summariser)(nil)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: API key is required")

// Config holds configuration for the OpenAI summariser.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Summariser writes document descriptions with the OpenAI API.
type Summariser struct {
	client *openai.Client
	model  string
}

// NewSummariser creates a new OpenAI summariser.
func NewSummariser(cfg Config) (*Summariser, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Summariser{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// summarisePrompt instructs the model; %d is the length bound.
const summarisePrompt = `You describe legal documents for a search index.
Write a description of the document in %d characters or less, in the same
language as the document (French or Arabic). Name the kind of text, its
subject and its key provisions or holding. Return ONLY the description.`

// Summarise creates a description of document content.
func (s *Summariser) Summarise(ctx context.Context, content string, maxLength int) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(summarisePrompt, maxLength)},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		MaxTokens:   maxLength / 2, // French and Arabic average under 4 chars per token
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("openai summarise: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai summarise: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ModelName returns the name of the chat model being used.
func (s *Summariser) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models.
func (s *Summariser) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *Summariser) Close() error {
	return nil
}
