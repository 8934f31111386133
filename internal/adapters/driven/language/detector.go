// Package language detects whether a legal text is Arabic or French.
package language

import (
	"strings"
	"unicode"

	"github.com/pemistahl/lingua-go"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.LanguageDetector = (*Detector)(nil)

// SampleSize is the number of leading characters inspected.
const SampleSize = 2000

// Detector wraps a lingua detector restricted to the supported languages.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector. Building loads the language models once.
func New() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.Arabic, lingua.French).
			Build(),
	}
}

// Detect returns the language of the leading sample of text, or
// domain.LanguageUnknown when the text has no letters.
func (d *Detector) Detect(text string) domain.Language {
	sample := leading(text, SampleSize)
	if strings.IndexFunc(sample, unicode.IsLetter) < 0 {
		return domain.LanguageUnknown
	}

	lang, ok := d.detector.DetectLanguageOf(sample)
	if !ok {
		return domain.LanguageUnknown
	}
	switch lang {
	case lingua.Arabic:
		return domain.LanguageArabic
	case lingua.French:
		return domain.LanguageFrench
	default:
		return domain.LanguageUnknown
	}
}

func leading(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
