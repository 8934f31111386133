package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filler = "Le tribunal statue sur la demande du requérant. "

// paragraph returns roughly n characters of prose ending with a blank line.
func paragraph(n int) string {
	var b strings.Builder
	for utf8.RuneCountInString(b.String()) < n {
		b.WriteString(filler)
	}
	return strings.TrimSpace(b.String()) + "\n\n"
}

// body returns paragraphs totalling at least n characters.
func body(n, paragraphSize int) string {
	var b strings.Builder
	for utf8.RuneCountInString(b.String()) < n {
		b.WriteString(paragraph(paragraphSize))
	}
	return b.String()
}

func normalise(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joined(r Result) string {
	parts := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

func TestSplit_ShortDocumentIsOneSection(t *testing.T) {
	text := "Article 1er : La présente loi fixe les règles générales.\n\nArticle 2 : ..."

	r := Split(text, Options{})

	require.True(t, r.Success)
	require.Equal(t, 1, r.TotalSections)
	s := r.Sections[0]
	assert.Equal(t, text, s.Content)
	assert.Equal(t, FullDocumentTitle, s.Title)
	assert.Equal(t, len(strings.Fields(text)), s.WordCount)
	assert.Equal(t, 0, s.StartOffset)
	assert.Equal(t, utf8.RuneCountInString(text), s.EndOffset)
	assert.Equal(t, LevelDocument, s.Level)
}

func TestSplit_ExactlyMaxIsOneSection(t *testing.T) {
	text := strings.Repeat("é", 100)
	r := Split(text, Options{MaxSectionSize: 100, MinSectionSize: 10})
	require.Equal(t, 1, r.TotalSections)
	assert.Equal(t, text, r.Sections[0].Content)
}

func TestSplit_SizeFallback(t *testing.T) {
	text := body(40000, 480)
	runes := []rune(text)
	require.GreaterOrEqual(t, len(runes), 40000)
	require.Less(t, len(runes), 41000)

	r := Split(text, Options{MaxSectionSize: 15000})

	require.True(t, r.Success)
	require.Equal(t, 3, r.TotalSections)
	for i, s := range r.Sections {
		assert.Equal(t, i, s.Index)
		assert.LessOrEqual(t, s.EndOffset-s.StartOffset, 15000)
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Content), 15000)
		assert.Equal(t, LevelPart, s.Level)
		assert.Equal(t, "Part "+string(rune('1'+i)), s.Title)
		if i < len(r.Sections)-1 {
			assert.Equal(t, "\n\n", string(runes[s.EndOffset-2:s.EndOffset]), "section %d should end at a paragraph break", i)
			assert.Equal(t, s.EndOffset, r.Sections[i+1].StartOffset)
		}
	}
	assert.Equal(t, normalise(text), normalise(joined(r)))
}

func TestSplit_FallsBackToLineBreak(t *testing.T) {
	line := strings.TrimSpace(filler) + "\n"
	text := strings.Repeat(line, 200)

	r := Split(text, Options{MaxSectionSize: 2000, MinSectionSize: 100})

	require.True(t, r.Success)
	runes := []rune(text)
	for _, s := range r.Sections[:len(r.Sections)-1] {
		assert.Equal(t, '\n', runes[s.EndOffset-1])
		assert.LessOrEqual(t, s.EndOffset-s.StartOffset, 2000)
	}
	assert.Equal(t, normalise(text), normalise(joined(r)))
}

func TestSplit_NoBreaksCutsAtWindow(t *testing.T) {
	text := strings.Repeat("x", 2500)

	r := Split(text, Options{MaxSectionSize: 1000, MinSectionSize: 100})

	require.Equal(t, 3, r.TotalSections)
	assert.Equal(t, 1000, r.Sections[0].EndOffset)
	var b strings.Builder
	for _, s := range r.Sections {
		b.WriteString(s.Content)
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_TailIsNeverTooShort(t *testing.T) {
	text := strings.Repeat("y", 1050)

	r := Split(text, Options{MaxSectionSize: 1000, MinSectionSize: 200})

	require.Equal(t, 2, r.TotalSections)
	assert.Equal(t, 850, r.Sections[0].EndOffset)
	assert.Equal(t, 200, utf8.RuneCountInString(r.Sections[1].Content))
	assert.Equal(t, text, strings.Join([]string{r.Sections[0].Content, r.Sections[1].Content}, ""))
}

func TestSplit_FrenchHeadings(t *testing.T) {
	text := "Royaume du Maroc\n" +
		"CHAPITRE I : Des obligations\n" + body(3000, 400) +
		"CHAPITRE II : Des contrats\n" + body(3000, 400)

	r := Split(text, Options{MaxSectionSize: 5000, MinSectionSize: 1000})

	require.True(t, r.Success)
	require.Equal(t, 2, r.TotalSections)
	assert.Equal(t, "CHAPITRE I : Des obligations", r.Sections[0].Title)
	assert.Equal(t, 0, r.Sections[0].StartOffset)
	assert.True(t, strings.HasPrefix(r.Sections[0].Content, "Royaume du Maroc"))
	assert.Equal(t, "CHAPITRE II : Des contrats", r.Sections[1].Title)
	assert.True(t, strings.HasPrefix(r.Sections[1].Content, "CHAPITRE II"))
	assert.Equal(t, LevelHeading, r.Sections[1].Level)
	assert.Equal(t, utf8.RuneCountInString(text), r.Sections[1].EndOffset)
	assert.Equal(t, normalise(text), normalise(joined(r)))
}

func TestSplit_ShortHeadingSectionIsAbsorbed(t *testing.T) {
	text := "Introduction\n" + paragraph(200) +
		"CHAPITRE I : Principes\n" + body(3000, 400) +
		"CHAPITRE II : Exceptions\n" + body(3000, 400)

	r := Split(text, Options{MaxSectionSize: 5000, MinSectionSize: 1000})

	require.Equal(t, 2, r.TotalSections)
	assert.Equal(t, "Introduction", r.Sections[0].Title)
	assert.Contains(t, r.Sections[0].Content, "CHAPITRE I : Principes")
	assert.Equal(t, "CHAPITRE II : Exceptions", r.Sections[1].Title)
}

func TestSplit_ShortLastSectionIsMerged(t *testing.T) {
	text := "CHAPITRE I : Principes\n" + body(3000, 400) +
		"CHAPITRE II : Exceptions\n" + body(3000, 400) +
		"Annexe\n" + paragraph(100)

	r := Split(text, Options{MaxSectionSize: 5000, MinSectionSize: 1000})

	require.Equal(t, 2, r.TotalSections)
	assert.Contains(t, r.Sections[1].Content, "Annexe")
	assert.Equal(t, normalise(text), normalise(joined(r)))
}

func TestSplit_OversizedHeadingSectionIsResplit(t *testing.T) {
	text := "TITRE 1 - Dispositions générales\n" + body(12000, 400) +
		"TITRE 2 - Dispositions finales\n" + body(2000, 400)

	r := Split(text, Options{MaxSectionSize: 5000, MinSectionSize: 1000})

	require.True(t, r.Success)
	require.GreaterOrEqual(t, r.TotalSections, 4)
	assert.Equal(t, "TITRE 1 - Dispositions générales - Part 1", r.Sections[0].Title)
	assert.Equal(t, "TITRE 1 - Dispositions générales - Part 2", r.Sections[1].Title)
	last := r.Sections[len(r.Sections)-1]
	assert.Equal(t, "TITRE 2 - Dispositions finales", last.Title)
	for i, s := range r.Sections {
		assert.Equal(t, i, s.Index)
		assert.LessOrEqual(t, s.EndOffset-s.StartOffset, 5000)
	}
	assert.Equal(t, normalise(text), normalise(joined(r)))
}

func TestSplit_ArabicHeadings(t *testing.T) {
	arabic := "تنظر المحكمة في الطلب المقدم من المدعي وفقا للقانون. "
	para := func(n int) string {
		var b strings.Builder
		for utf8.RuneCountInString(b.String()) < n {
			b.WriteString(arabic)
		}
		return b.String() + "\n\n"
	}
	text := "الباب الأول: الأحكام العامة\n" + para(2500) + para(500) +
		"الباب الثاني: العقود المسماة\n" + para(2500) + para(500)

	r := Split(text, Options{MaxSectionSize: 5000, MinSectionSize: 1000})

	require.True(t, r.Success)
	require.Equal(t, 2, r.TotalSections)
	assert.Equal(t, "الباب الأول: الأحكام العامة", r.Sections[0].Title)
	assert.Equal(t, "الباب الثاني: العقود المسماة", r.Sections[1].Title)

	runes := []rune(text)
	for _, s := range r.Sections {
		assert.Equal(t, strings.TrimSpace(string(runes[s.StartOffset:s.EndOffset])), s.Content)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := "PARTIE A : Procédure\n" + body(8000, 700) + "PARTIE B : Fond\n" + body(9000, 900)
	opts := Options{MaxSectionSize: 6000, MinSectionSize: 500}

	first := Split(text, opts)
	second := Split(text, opts)

	assert.Equal(t, first, second)
}

func TestSplit_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative max", Options{MaxSectionSize: -1}},
		{"min above max", Options{MaxSectionSize: 100, MinSectionSize: 200}},
		{"negative min", Options{MaxSectionSize: 100, MinSectionSize: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Split("texte", tt.opts)
			assert.False(t, r.Success)
			assert.NotEmpty(t, r.Error)
			assert.Empty(t, r.Sections)
		})
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"CHAPITRE IV - Des sûretés", true},
		{"chapitre 2: Des preuves", true},
		{"SECTION B. Compétence", true},
		{"IV. Les voies de recours", true},
		{"12. Dispositions transitoires", true},
		{"Conclusion", true},
		{"Bibliographie sélective", true},
		{"الفصل ١٢ : البيع", true},
		{"المقدمة", true},
		{"Le tribunal statue", false},
		{"I. a", false},
		{"IV. " + strings.Repeat("long ", 50), false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.line))
		})
	}
}

func TestSplitter_Split(t *testing.T) {
	sections, err := New(Options{}).Split("court texte")
	require.NoError(t, err)
	assert.Len(t, sections, 1)

	_, err = New(Options{MaxSectionSize: 10, MinSectionSize: 20}).Split("court texte")
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	r := Split(body(3000, 400), Options{MaxSectionSize: 1000, MinSectionSize: 100})
	require.GreaterOrEqual(t, r.TotalSections, 3)

	meta := Metadata("doc-1", r.Sections)

	require.Len(t, meta, r.TotalSections)
	assert.Nil(t, meta[0].PrevSection)
	require.NotNil(t, meta[0].NextSection)
	assert.Equal(t, 1, *meta[0].NextSection)
	assert.Nil(t, meta[len(meta)-1].NextSection)

	m := meta[1].Map()
	assert.Equal(t, "doc-1", m["parent_document_id"])
	assert.Equal(t, 1, m["section_index"])
	assert.Equal(t, 0, m["prev_section"])
	assert.Equal(t, r.TotalSections, m["total_sections"])
}
