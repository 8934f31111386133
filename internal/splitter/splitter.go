// Package splitter divides long legal texts into titled sections that fit
// the embedding pipeline. Headings in French and Arabic are preferred as
// boundaries; texts without headings are cut by size at paragraph breaks.
package splitter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Splitter implements the interface.
var _ driven.SectionSplitter = (*Splitter)(nil)

// Size defaults, in characters.
const (
	DefaultMaxSectionSize = 45000
	DefaultMinSectionSize = 1000

	// BoundaryMargin is how far back from the window end a paragraph or
	// line break is searched for.
	BoundaryMargin = 500
)

// Heading lines are only accepted within these lengths.
const (
	minHeadingLength = 5
	maxHeadingLength = 200
)

// Section titles.
const (
	FullDocumentTitle = "Full document"
	PreambleTitle     = "Preamble"
)

// Section levels.
const (
	LevelDocument = 0
	LevelHeading  = 1
	LevelPart     = 2
)

var headingPatterns = []*regexp.Regexp{
	// French
	regexp.MustCompile(`(?i)^(CHAPITRE|PARTIE|SECTION|TITRE)\s+([IVX\d]+|[A-Z])\s*[:.\-]?\s*(.+)$`),
	regexp.MustCompile(`^([IVX\d]+)\.\s+(.+)$`),
	regexp.MustCompile(`(?i)^(Introduction|Conclusion|Bibliographie|Annexe|Résumé)`),
	// Arabic
	regexp.MustCompile(`^(الباب|الفصل|الجزء|القسم|المبحث)\s+(الأول|الثاني|الثالث|الرابع|الخامس|[٠-٩\d]+)\s*[:.\-]?\s*(.+)$`),
	regexp.MustCompile(`^(المقدمة|الخاتمة|المراجع|الملاحق|الفهرس)`),
}

// ErrInvalidOptions is returned for inconsistent size bounds.
var ErrInvalidOptions = errors.New("splitter: invalid options")

// Options bounds section sizes. Zero values select the defaults.
type Options struct {
	MaxSectionSize int
	MinSectionSize int
}

func (o Options) withDefaults() Options {
	if o.MaxSectionSize == 0 {
		o.MaxSectionSize = DefaultMaxSectionSize
	}
	if o.MinSectionSize == 0 {
		o.MinSectionSize = DefaultMinSectionSize
	}
	return o
}

func (o Options) validate() error {
	if o.MaxSectionSize <= 0 {
		return fmt.Errorf("%w: max section size %d", ErrInvalidOptions, o.MaxSectionSize)
	}
	if o.MinSectionSize < 0 || o.MinSectionSize > o.MaxSectionSize {
		return fmt.Errorf("%w: min section size %d with max %d",
			ErrInvalidOptions, o.MinSectionSize, o.MaxSectionSize)
	}
	return nil
}

// Result is the outcome of a split. Failures are reported in Error, never panics.
type Result struct {
	Success       bool             `json:"success"`
	Sections      []domain.Section `json:"sections"`
	TotalSections int              `json:"total_sections"`
	Error         string           `json:"error,omitempty"`
}

// Split divides text into sections. It is deterministic: the same input and
// options always yield the same boundaries and titles.
func Split(text string, opts Options) Result {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return Result{Error: err.Error()}
	}

	runes := []rune(text)
	if len(runes) <= opts.MaxSectionSize {
		return done([]domain.Section{{
			Title:     FullDocumentTitle,
			Content:   text,
			EndOffset: len(runes),
			WordCount: wordCount(text),
			Level:     LevelDocument,
		}})
	}

	sections := splitByHeadings(runes, opts)
	if len(sections) == 0 {
		sections = splitBySize(runes, 0, len(runes), opts, "")
	}
	return done(sections)
}

func done(sections []domain.Section) Result {
	for i := range sections {
		sections[i].Index = i
	}
	return Result{Success: true, Sections: sections, TotalSections: len(sections)}
}

// ==================== Heading detection ====================

// IsHeading reports whether a trimmed line looks like a section heading.
func IsHeading(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < minHeadingLength || n > maxHeadingLength {
		return false
	}
	for _, p := range headingPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

type span struct {
	title      string
	start, end int
}

// splitByHeadings cuts the text at heading lines. A heading only closes the
// current section once it holds at least MinSectionSize characters; shorter
// runs are absorbed by the following section. Returns nil when the text has
// no heading at all.
func splitByHeadings(runes []rune, opts Options) []domain.Section {
	var spans []span
	current := span{title: PreambleTitle}
	found := false

	offset := 0
	for offset < len(runes) {
		lineEnd := indexRune(runes, offset, '\n')
		line := strings.TrimSpace(string(runes[offset:lineEnd]))

		if IsHeading(line) {
			found = true
			switch {
			case contentLength(runes[current.start:offset]) >= opts.MinSectionSize:
				current.end = offset
				spans = append(spans, current)
				current = span{title: line, start: offset}
			case current.title == PreambleTitle:
				current.title = line
			}
		}

		offset = lineEnd + 1
	}
	if !found {
		return nil
	}

	current.end = len(runes)
	if len(spans) > 0 && contentLength(runes[current.start:current.end]) < opts.MinSectionSize {
		spans[len(spans)-1].end = current.end
	} else {
		spans = append(spans, current)
	}

	var sections []domain.Section
	for _, s := range spans {
		if s.end-s.start > opts.MaxSectionSize {
			sections = append(sections, splitBySize(runes, s.start, s.end, opts, s.title)...)
			continue
		}
		sections = append(sections, section(runes, s.start, s.end, s.title, LevelHeading))
	}
	return sections
}

// ==================== Size-based fallback ====================

// splitBySize cuts runes[start:end] into windows of at most MaxSectionSize,
// ending each window at the last paragraph break, else line break, within
// BoundaryMargin of the window end. Parts are titled "Part N", or
// "<parent> - Part N" when parent is set.
func splitBySize(runes []rune, start, end int, opts Options, parent string) []domain.Section {
	var sections []domain.Section
	cur := start

	for cur < end {
		cut := min(cur+opts.MaxSectionSize, end)
		if cut < end {
			// Leave at least MinSectionSize for the tail.
			if rest := end - cut; rest < opts.MinSectionSize && end-cur-opts.MinSectionSize > 0 {
				cut = end - opts.MinSectionSize
			}
			cut = boundaryBefore(runes, cur, cut)
		}

		s := section(runes, cur, cut, partTitle(parent, len(sections)+1), LevelPart)
		switch {
		case s.Content == "":
		case len(sections) > 0 && utf8.RuneCountInString(s.Content) < opts.MinSectionSize:
			last := &sections[len(sections)-1]
			*last = section(runes, last.StartOffset, cut, last.Title, LevelPart)
		default:
			sections = append(sections, s)
		}
		cur = cut
	}
	return sections
}

// boundaryBefore returns the position just after the last "\n\n", else the
// last "\n", in runes[max(cur, cut-BoundaryMargin):cut]. Without a break it
// returns cut.
func boundaryBefore(runes []rune, cur, cut int) int {
	from := max(cur+1, cut-BoundaryMargin)
	for i := cut - 1; i > from; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := cut - 1; i >= from; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return cut
}

func partTitle(parent string, n int) string {
	if parent == "" {
		return fmt.Sprintf("Part %d", n)
	}
	return fmt.Sprintf("%s - Part %d", parent, n)
}

// ==================== Helpers ====================

func section(runes []rune, start, end int, title string, level int) domain.Section {
	content := strings.TrimSpace(string(runes[start:end]))
	return domain.Section{
		Title:       title,
		Content:     content,
		StartOffset: start,
		EndOffset:   end,
		WordCount:   wordCount(content),
		Level:       level,
	}
}

func indexRune(runes []rune, from int, r rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return len(runes)
}

func contentLength(runes []rune) int {
	return utf8.RuneCountInString(strings.TrimSpace(string(runes)))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ==================== Splitter ====================

// Splitter applies fixed options. It implements driven.SectionSplitter.
type Splitter struct {
	opts Options
}

// New creates a splitter with the given bounds.
func New(opts Options) *Splitter {
	return &Splitter{opts: opts}
}

// Split returns the sections of text.
func (s *Splitter) Split(text string) ([]domain.Section, error) {
	result := Split(text, s.opts)
	if !result.Success {
		return nil, errors.New(result.Error)
	}
	return result.Sections, nil
}

// ==================== Section metadata ====================

// SectionMetadata links a section to its parent document and neighbours.
type SectionMetadata struct {
	ParentDocumentID string `json:"parent_document_id"`
	SectionIndex     int    `json:"section_index"`
	SectionTitle     string `json:"section_title"`
	TotalSections    int    `json:"total_sections"`
	PrevSection      *int   `json:"prev_section,omitempty"`
	NextSection      *int   `json:"next_section,omitempty"`
}

// Metadata returns parent/child linkage for every section, in order.
func Metadata(parentID string, sections []domain.Section) []SectionMetadata {
	out := make([]SectionMetadata, len(sections))
	for i, s := range sections {
		m := SectionMetadata{
			ParentDocumentID: parentID,
			SectionIndex:     s.Index,
			SectionTitle:     s.Title,
			TotalSections:    len(sections),
		}
		if i > 0 {
			prev := sections[i-1].Index
			m.PrevSection = &prev
		}
		if i < len(sections)-1 {
			next := sections[i+1].Index
			m.NextSection = &next
		}
		out[i] = m
	}
	return out
}

// Map renders the metadata as a generic map for chunk metadata columns.
func (m SectionMetadata) Map() map[string]any {
	out := map[string]any{
		"parent_document_id": m.ParentDocumentID,
		"section_index":      m.SectionIndex,
		"section_title":      m.SectionTitle,
		"total_sections":     m.TotalSections,
	}
	if m.PrevSection != nil {
		out["prev_section"] = *m.PrevSection
	}
	if m.NextSection != nil {
		out["next_section"] = *m.NextSection
	}
	return out
}
