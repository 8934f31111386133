package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	require.NotEmpty(t, mimeTypes)
	assert.Contains(t, mimeTypes, "text/plain")
	assert.Contains(t, mimeTypes, "text/csv")
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		SourceID: "src-1",
		URI:      "https://drive.google.com/file/d/abc/view",
		Name:     "Arret_Cour_Cassation_2024.txt",
		MIMEType: "text/plain",
		Content:  []byte("\ufeffAttendu que le pourvoi est recevable ;\r\nPar ces motifs, rejette.\r\n"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Arret Cour Cassation 2024", result.Title)
	assert.Equal(t, "Attendu que le pourvoi est recevable ;\nPar ces motifs, rejette.", result.Text)
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_EmptyContent(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{Name: "vide.txt"})
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name, uri, want string
	}{
		{"Loi 08-09.pdf", "", "Loi 08-09"},
		{"Décret n° 2.15", "", "Décret n° 2.15"},
		{"", "/uploads/code_penal.docx", "code penal"},
		{"", "", ""},
		{"مدونة الأسرة.txt", "", "مدونة الأسرة"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.name, tt.uri))
		})
	}
}
