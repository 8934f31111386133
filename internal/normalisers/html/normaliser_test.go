package html

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

const judgmentPage = `<!DOCTYPE html>
<html lang="fr">
<head>
  <title>Arrêt n° 123 du 5 janvier 2024</title>
  <style>body { color: red; }</style>
  <script>var tracker = "analytics";</script>
</head>
<body>
  <nav><a href="/">Accueil</a> <a href="/juris">Jurisprudence</a></nav>
  <article>
    <h1>Arrêt n° 123 du 5 janvier 2024</h1>
    <p>Attendu que le demandeur au pourvoi soutient que la cour d'appel a violé l'article 230 du dahir formant code des obligations et contrats, en ce qu'elle a refusé d'appliquer la clause pénale stipulée entre les parties.</p>
    <p>Mais attendu que les juges du fond apprécient souverainement le caractère manifestement excessif de la pénalité convenue et peuvent la réduire d'office, de sorte que le moyen n'est pas fondé.</p>
    <p>Par ces motifs, la Cour rejette le pourvoi et condamne le demandeur aux dépens.</p>
  </article>
</body>
</html>`

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		SourceID: "src-1",
		URI:      "https://drive.google.com/file/d/abc/view",
		Name:     "arret-123.html",
		MIMEType: "text/html",
		Content:  []byte(judgmentPage),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Contains(t, result.Title, "Arrêt n° 123")
	assert.Contains(t, result.Text, "Par ces motifs, la Cour rejette le pourvoi")
	assert.Contains(t, result.Text, "clause pénale")
	assert.NotContains(t, result.Text, "tracker")
	assert.NotContains(t, result.Text, "color: red")
}

func TestNormalise_TitleFallsBackToName(t *testing.T) {
	raw := &domain.RawDocument{
		Name:    "circulaire_2023.html",
		Content: []byte("<p>Texte</p>"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "circulaire 2023", result.Title)
	assert.Equal(t, "Texte", result.Text)
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "paragraphs",
			html: "<p>Premier   alinéa</p><p>Second\n alinéa</p>",
			want: "Premier alinéa\n\nSecond alinéa",
		},
		{
			name: "line breaks and inline elements",
			html: "<div>Article <b>1</b><br>Alinéa <i>2</i></div>",
			want: "Article 1\nAlinéa 2",
		},
		{
			name: "lists",
			html: "<ul><li>Titre I</li><li>Titre II</li></ul>",
			want: "Titre I\n\nTitre II",
		},
		{
			name: "table rows",
			html: "<table><tr><td>Article</td><td>Peine</td></tr><tr><td>400</td><td>Amende</td></tr></table>",
			want: "Article Peine\n\n400 Amende",
		},
		{
			name: "scripts dropped",
			html: "<p>Visible</p><script>hidden()</script><noscript>none</noscript>",
			want: "Visible",
		},
		{
			name: "wrapped source lines stay in their paragraph",
			html: "<p>Vu le code civil,\n  notamment son\n\tarticle 1240 ;</p>",
			want: "Vu le code civil, notamment son article 1240 ;",
		},
		{
			name: "preformatted text keeps its lines",
			html: "<pre>Article 1\nArticle 2</pre>",
			want: "Article 1\nArticle 2",
		},
		{
			name: "arabic",
			html: "<p>الفصل الأول</p><p>أحكام عامة</p>",
			want: "الفصل الأول\n\nأحكام عامة",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Text(doc.Selection))
		})
	}
}
