package driven

import "context"

// Summariser writes a short description of document text with a language
// model. This is an optional service - when nil, reprocessing derives the
// description from the leading sentences.
//
// Implementations:
//   - OpenAI chat completions (gpt-4o-mini)
//   - Ollama generate (local models)
type Summariser interface {
	// Summarise returns a description of at most maxLength characters,
	// written in the language of the content.
	Summarise(ctx context.Context, content string, maxLength int) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
