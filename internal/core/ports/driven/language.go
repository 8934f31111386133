package driven

import "github.com/custodia-labs/lexindex/internal/core/domain"

// LanguageDetector identifies the language of a text.
type LanguageDetector interface {
	// Detect returns the detected language, or domain.LanguageUnknown.
	Detect(text string) domain.Language
}
