package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/splitter"
)

var (
	splitMax  int
	splitMin  int
	splitJSON bool

	ingestTitle    string
	ingestCategory string
	ingestDocType  string
	ingestMIME     string

	indexPendingLimit int

	backfillSpace     string
	backfillBatchSize int
	backfillCategory  string
	backfillMax       int
)

// extensionTypes covers extensions the system MIME table often lacks.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":      "text/csv",
	".html":     "text/html",
	".htm":      "text/html",
}

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split a text file into sections",
	Long: `Runs the section splitter on a plain-text file and prints the section
titles, offsets and word counts. Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a local file into the knowledge base",
	Long: `Extracts the text of a local file (PDF, DOCX, XLSX, HTML, Markdown or
plain text), stores it as a document and indexes its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var indexPendingCmd = &cobra.Command{
	Use:   "index-pending",
	Short: "Index documents that have no chunks yet",
	RunE:  runIndexPending,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks [document-id]",
	Short: "Show embedding coverage of a document's chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed chunks missing a vector",
	Long: `Fills missing embeddings of one space in throttled batches.
Without --space the primary provider's space is used.`,
	RunE: runBackfill,
}

func init() {
	splitCmd.Flags().IntVar(&splitMax, "max", splitter.DefaultMaxSectionSize, "maximum section size in characters")
	splitCmd.Flags().IntVar(&splitMin, "min", splitter.DefaultMinSectionSize, "minimum section size in characters")
	splitCmd.Flags().BoolVar(&splitJSON, "json", false, "output sections as JSON")

	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (default: extracted title or file name)")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category (default: autre)")
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "", "document type (default: derived from category)")
	ingestCmd.Flags().StringVar(&ingestMIME, "mime", "", "override the MIME type detected from the extension")

	indexPendingCmd.Flags().IntVar(&indexPendingLimit, "limit", 50, "maximum documents to index")

	backfillCmd.Flags().StringVar(&backfillSpace, "space", "", "embedding space: ollama or openai")
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", domain.DefaultBackfillBatchSize, "chunks per batch")
	backfillCmd.Flags().StringVar(&backfillCategory, "category", "", "restrict to one category")
	backfillCmd.Flags().IntVar(&backfillMax, "max", 0, "maximum chunks to embed (0 = all)")

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(indexPendingCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(backfillCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	result := splitter.Split(string(data), splitter.Options{MaxSectionSize: splitMax, MinSectionSize: splitMin})
	if splitJSON {
		return printJSON(cmd, result)
	}
	if !result.Success {
		return fmt.Errorf("split failed: %s", result.Error)
	}

	cmd.Printf("%d sections:\n", result.TotalSections)
	for _, s := range result.Sections {
		cmd.Printf("  [%d] %-50s %7d-%-7d %6d words\n", s.Index, s.Title, s.StartOffset, s.EndOffset, s.WordCount)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	mimeType := ingestMIME
	if mimeType == "" {
		mimeType = detectMIME(path)
	}
	if mimeType == "" {
		return fmt.Errorf("cannot detect the type of %s: use --mime", path)
	}

	name := filepath.Base(path)
	raw := domain.RawDocument{
		URI:      "file://" + path,
		Name:     name,
		MIMEType: mimeType,
		Content:  content,
	}
	meta := domain.KnowledgeDocument{
		Title:    ingestTitle,
		Category: domain.Category(ingestCategory),
		DocType:  domain.DocumentType(ingestDocType),
	}

	doc, err := ingestionService.IngestUpload(cmd.Context(), raw, meta)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %s\n", newPainter(cmd).Ok("%s", doc.ID))
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Category: %s / %s\n", doc.Category, doc.DocType)
	cmd.Printf("  Language: %s\n", doc.Language)
	if doc.Completeness != nil {
		cmd.Printf("  Completeness: %d\n", *doc.Completeness)
	}
	return nil
}

// detectMIME maps a file extension to a MIME type.
func detectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return t
}

func runIndexPending(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	indexed, failed, err := ingestionService.IndexPending(cmd.Context(), indexPendingLimit)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	p := newPainter(cmd)
	cmd.Printf("Indexed %s documents, %s failed\n", p.Ok("%d", indexed), p.Bad("%d", failed))
	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	if embeddingGenerator == nil {
		return errors.New("embedding generator not configured")
	}
	stats, err := embeddingGenerator.Stats(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document %s not found", args[0])
		}
		return fmt.Errorf("failed to get chunk stats: %w", err)
	}
	cmd.Printf("Chunks:            %d\n", stats.Total)
	cmd.Printf("With ollama:       %d\n", stats.WithOllama)
	cmd.Printf("With openai:       %d\n", stats.WithOpenAI)
	cmd.Printf("Without embedding: %d\n", stats.WithoutEmbedding)
	return nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	if embeddingGenerator == nil {
		return errors.New("embedding generator not configured")
	}
	space := domain.EmbeddingSpace(backfillSpace)
	if space != "" && !space.IsValid() {
		return fmt.Errorf("invalid space %q: use ollama or openai", backfillSpace)
	}

	result, err := embeddingGenerator.Backfill(cmd.Context(), domain.BackfillOptions{
		Space:     space,
		BatchSize: backfillBatchSize,
		Category:  domain.Category(backfillCategory),
		MaxChunks: backfillMax,
	})
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	p := newPainter(cmd)
	cmd.Printf("Backfill %s: %s/%d embedded, %s failed in %s\n",
		result.Space, p.Ok("%d", result.Processed), result.Total, p.Bad("%d", result.Failed), result.Duration.Round(time.Millisecond))
	return nil
}
