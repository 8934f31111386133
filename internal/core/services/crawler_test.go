package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// ==================== Fakes ====================

// fakeDrive serves a folder tree from memory.
type fakeDrive struct {
	mu       sync.Mutex
	children map[string][]domain.DriveFile
	listErr  map[string]error
	pageSize int
	queries  []domain.ListQuery
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		children: map[string][]domain.DriveFile{"root": nil},
		listErr:  make(map[string]error),
	}
}

func (d *fakeDrive) GetFolder(_ context.Context, folderID string) (*domain.DriveFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[folderID]; !ok {
		return nil, domain.ErrFolderUnresolvable
	}
	return &domain.DriveFile{ID: folderID, Name: folderID, IsFolder: true}, nil
}

func (d *fakeDrive) ListChildren(_ context.Context, query domain.ListQuery) (*domain.ListPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, query)
	if err := d.listErr[query.FolderID]; err != nil {
		return nil, err
	}

	files := d.children[query.FolderID]
	if d.pageSize <= 0 {
		return &domain.ListPage{Files: files}, nil
	}
	start, _ := strconv.Atoi(query.PageToken)
	end := min(start+d.pageSize, len(files))
	page := &domain.ListPage{Files: files[start:end]}
	if end < len(files) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (d *fakeDrive) Download(_ context.Context, file domain.FileMeta) (*domain.RawDocument, error) {
	return &domain.RawDocument{Name: file.Name, MIMEType: file.MimeType}, nil
}

func (d *fakeDrive) put(folderID string, files ...domain.DriveFile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children[folderID] = files
	for _, f := range files {
		if _, ok := d.children[f.ID]; f.IsFolder && !ok {
			d.children[f.ID] = nil
		}
	}
}

func (d *fakeDrive) listCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queries)
}

// fakeIngestion records ingested records and fails for listed names. Like
// IngestionService it leaves each record crawled or failed.
type fakeIngestion struct {
	records  driven.PageRecordStore
	ingested []string
	failFor  map[string]error
}

func (f *fakeIngestion) IngestRecord(ctx context.Context, _ domain.Source, record domain.PageRecord) (*domain.KnowledgeDocument, error) {
	if err := f.failFor[record.Title]; err != nil {
		if f.records != nil {
			_ = f.records.SetStatus(ctx, record.ID, domain.PageStatusFailed, 0)
		}
		return nil, err
	}
	f.ingested = append(f.ingested, record.Title)
	if f.records != nil {
		_ = f.records.SetStatus(ctx, record.ID, domain.PageStatusCrawled, 10)
	}
	return &domain.KnowledgeDocument{ID: "doc-" + record.Title}, nil
}

func downloadError(code int) error {
	return fmt.Errorf("%w: %w", domain.ErrDownload, &domain.StatusError{Code: code, Err: errors.New("googleapi")})
}

func (f *fakeIngestion) IngestText(context.Context, domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	return nil, nil
}

func (f *fakeIngestion) IngestUpload(context.Context, domain.RawDocument, domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	return nil, nil
}

func (f *fakeIngestion) IndexDocument(context.Context, string) (int, error) { return 0, nil }

func (f *fakeIngestion) IndexPending(context.Context, int) (int, int, error) { return 0, 0, nil }

func (f *fakeIngestion) Get(context.Context, string) (*domain.KnowledgeDocument, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeIngestion) Chunks(context.Context, string) ([]domain.Chunk, error) { return nil, nil }

// failingRecordStore fails every upsert.
type failingRecordStore struct{ *memory.PageRecordStore }

func (failingRecordStore) Upsert(context.Context, domain.PageRecord) (*domain.UpsertOutcome, error) {
	return nil, errors.New("database is locked")
}

// ==================== Helpers ====================

type crawlerFixture struct {
	crawler   *DriveCrawler
	drive     *fakeDrive
	sources   *memory.SourceStore
	records   *memory.PageRecordStore
	monitor   *HealthMonitor
	factories int
}

func newCrawlerFixture(t *testing.T, source domain.Source) *crawlerFixture {
	t.Helper()
	f := &crawlerFixture{
		drive:   newFakeDrive(),
		sources: memory.NewSourceStore(),
		records: memory.NewPageRecordStore(),
	}
	require.NoError(t, f.sources.Save(context.Background(), source))
	f.monitor = NewHealthMonitor(f.sources, memory.NewHealthStore())
	f.crawler = NewDriveCrawler(f.sources, f.records, f.monitor,
		func(context.Context, domain.Source) (driven.DriveClient, error) {
			f.factories++
			return f.drive, nil
		})
	return f
}

func crawlSource() domain.Source {
	return domain.Source{
		ID:           "src-1",
		Name:         "Jurisprudence",
		Kind:         domain.SourceKindDrive,
		BaseLocation: "root",
		Category:     domain.CategoryJurisprudence,
		Crawl:        domain.CrawlConfig{RateLimitDelay: time.Millisecond},
		Settings:     domain.DriveSettings{FolderID: "root", Recursive: true},
		Active:       true,
	}
}

func driveFile(id, modified string, size int64) domain.DriveFile {
	return domain.DriveFile{
		ID:           id,
		Name:         id + ".pdf",
		MimeType:     "application/pdf",
		Size:         size,
		ModifiedTime: modified,
		WebViewLink:  "https://drive.google.com/file/d/" + id + "/view",
	}
}

func driveFolder(id string) domain.DriveFile {
	return domain.DriveFile{ID: id, Name: id, MimeType: "application/vnd.google-apps.folder", IsFolder: true}
}

func (f *crawlerFixture) crawl(t *testing.T, opts domain.CrawlOptions) domain.CrawlResult {
	t.Helper()
	source, err := f.sources.Get(context.Background(), "src-1")
	require.NoError(t, err)
	return f.crawler.CrawlSource(context.Background(), *source, opts)
}

// ==================== Tests ====================

func TestDriveCrawler_NewChangedUnchanged(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ctx := context.Background()

	f.drive.put("root",
		driveFile("a", "2026-01-01T00:00:00Z", 100),
		driveFile("b", "2026-01-01T00:00:00Z", 200),
	)
	first := f.crawl(t, domain.CrawlOptions{})
	require.True(t, first.Success)
	assert.Equal(t, 2, first.PagesNew)

	f.drive.put("root",
		driveFile("a", "2026-01-01T00:00:00Z", 100),
		driveFile("b", "2026-02-01T00:00:00Z", 250),
		driveFile("c", "2026-02-01T00:00:00Z", 300),
	)
	second := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, second.Success)
	assert.Equal(t, 3, second.PagesProcessed)
	assert.Equal(t, 1, second.PagesNew)
	assert.Equal(t, 1, second.PagesChanged)
	assert.Equal(t, 0, second.PagesFailed)
	assert.Empty(t, second.Errors)

	a, err := f.records.GetByIdentity(ctx, "src-1", IdentityHash("a"))
	require.NoError(t, err)
	versions, err := f.records.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	b, err := f.records.GetByIdentity(ctx, "src-1", IdentityHash("b"))
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusChanged, b.Status)
	assert.Equal(t, Fingerprint(driveFile("b", "2026-02-01T00:00:00Z", 250)), b.ContentHash)
	versions, err = f.records.ListVersions(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Number)
	assert.Equal(t, domain.ChangeTypeContent, versions[0].ChangeType)
}

func TestDriveCrawler_UnchangedListingIsNoOp(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	f.drive.put("root", driveFile("a", "2026-01-01T00:00:00Z", 100))

	f.crawl(t, domain.CrawlOptions{})
	again := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, again.Success)
	assert.Equal(t, 1, again.PagesProcessed)
	assert.Equal(t, 0, again.PagesNew)
	assert.Equal(t, 0, again.PagesChanged)
}

func TestDriveCrawler_RecursiveTraversal(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	f.drive.put("root", driveFolder("civil"), driveFile("a", "t1", 1))
	f.drive.put("civil", driveFolder("penal"), driveFile("b", "t1", 1))
	// A shortcut back to an ancestor must not loop.
	f.drive.put("penal", driveFolder("civil"), driveFile("c", "t1", 1))

	result := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.PagesNew)
	assert.Equal(t, 3, f.drive.listCalls())

	c, err := f.records.GetByIdentity(context.Background(), "src-1", IdentityHash("c"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Depth)
}

func TestDriveCrawler_NonRecursive(t *testing.T) {
	source := crawlSource()
	source.Settings = domain.DriveSettings{FolderID: "root"}
	f := newCrawlerFixture(t, source)
	f.drive.put("root", driveFolder("civil"), driveFile("a", "t1", 1))
	f.drive.put("civil", driveFile("b", "t1", 1))

	result := f.crawl(t, domain.CrawlOptions{})

	assert.Equal(t, 1, result.PagesProcessed)
	assert.Equal(t, 1, f.drive.listCalls())
}

func TestDriveCrawler_Pagination(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	f.drive.pageSize = 2
	f.drive.put("root",
		driveFile("a", "t1", 1), driveFile("b", "t1", 1),
		driveFile("c", "t1", 1), driveFile("d", "t1", 1), driveFile("e", "t1", 1),
	)

	result := f.crawl(t, domain.CrawlOptions{})

	assert.Equal(t, 5, result.PagesNew)
	assert.Equal(t, 3, f.drive.listCalls())
	assert.Equal(t, int64(ListPageSize), f.drive.queries[0].PageSize)
	assert.Equal(t, "2", f.drive.queries[1].PageToken)
}

func TestDriveCrawler_MaxPages(t *testing.T) {
	source := crawlSource()
	source.Crawl.MaxPages = 2
	f := newCrawlerFixture(t, source)
	f.drive.put("root", driveFolder("sub"), driveFile("a", "t1", 1), driveFile("b", "t1", 1), driveFile("c", "t1", 1))
	f.drive.put("sub", driveFile("d", "t1", 1))

	result := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 1, f.drive.listCalls())
}

func TestDriveCrawler_SkipsOversizedAndFilteredFiles(t *testing.T) {
	source := crawlSource()
	source.Crawl.MaxFileSize = 1000
	source.Settings = domain.DriveSettings{FolderID: "root", FileTypes: []string{"pdf", "application/vnd.google-apps.document"}}
	f := newCrawlerFixture(t, source)

	gdoc := domain.DriveFile{ID: "g", Name: "Arrêt 12", MimeType: "application/vnd.google-apps.document", ModifiedTime: "t1"}
	image := domain.DriveFile{ID: "i", Name: "scan.png", MimeType: "image/png", Size: 10, ModifiedTime: "t1"}
	f.drive.put("root", driveFile("small", "t1", 999), driveFile("huge", "t1", 5000), gdoc, image)

	result := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 2, result.PagesSkipped)
	assert.Equal(t, 0, result.PagesFailed)
}

func TestDriveCrawler_FatalErrors(t *testing.T) {
	t.Run("unresolvable folder", func(t *testing.T) {
		source := crawlSource()
		source.Settings = domain.DriveSettings{FolderID: "missing", Recursive: true}
		f := newCrawlerFixture(t, source)

		result := f.crawl(t, domain.CrawlOptions{})

		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "root", result.Errors[0].URL)
		assert.Contains(t, result.Errors[0].Message, "resolve root folder")
		assert.Zero(t, result.PagesProcessed)
	})

	t.Run("web source", func(t *testing.T) {
		source := crawlSource()
		source.Kind = domain.SourceKindWeb
		source.BaseLocation = "https://www.joradp.dz"
		source.Settings = domain.WebSettings{MaxDepth: 2}
		f := newCrawlerFixture(t, source)

		result := f.crawl(t, domain.CrawlOptions{})

		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "unsupported source kind")
		assert.Zero(t, f.factories)
	})

	t.Run("client factory error", func(t *testing.T) {
		f := newCrawlerFixture(t, crawlSource())
		f.crawler.clients = func(context.Context, domain.Source) (driven.DriveClient, error) {
			return nil, errors.New("no credentials")
		}

		result := f.crawl(t, domain.CrawlOptions{})

		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "no credentials")
	})

	t.Run("root listing error", func(t *testing.T) {
		f := newCrawlerFixture(t, crawlSource())
		f.drive.listErr["root"] = errors.New("connection reset")

		result := f.crawl(t, domain.CrawlOptions{})

		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Zero(t, result.PagesFailed)
	})
}

func TestDriveCrawler_PerItemFailuresDoNotAbort(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	f.crawler.records = failingRecordStore{f.records}
	f.drive.put("root", driveFile("a", "t1", 1), driveFile("b", "t1", 1))

	result := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 2, result.PagesFailed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "https://drive.google.com/file/d/a/view", result.Errors[0].URL)
}

func TestDriveCrawler_SubfolderListingErrorIsPerItem(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	f.drive.put("root", driveFolder("broken"), driveFile("a", "t1", 1))
	f.drive.listErr["broken"] = errors.New("internal error")

	result := f.crawl(t, domain.CrawlOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.PagesNew)
	assert.Equal(t, 1, result.PagesFailed)
}

func TestDriveCrawler_BanSignalsStopCrawl(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ctx := context.Background()
	f.drive.put("root", driveFolder("s1"), driveFolder("s2"), driveFolder("s3"), driveFolder("s4"))
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		f.drive.listErr[id] = &domain.StatusError{Code: 429, Err: domain.ErrRateLimited}
	}

	result := f.crawl(t, domain.CrawlOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, 4, f.drive.listCalls())
	assert.Contains(t, result.Errors[len(result.Errors)-1].Message, "source banned")

	decision := f.monitor.CanSourceCrawl(ctx, "src-1")
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "HTTP 429")

	stats, err := f.monitor.GetCrawlerHealthStats(ctx, "src-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRequests)
	assert.Equal(t, 3, stats.Errors429)
	assert.Equal(t, 3, stats.BanDetections)
}

func TestDriveCrawler_Incremental(t *testing.T) {
	source := crawlSource()
	lastCrawl := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	source.LastCrawlAt = lastCrawl
	f := newCrawlerFixture(t, source)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.crawler.now = func() time.Time { return started }

	result := f.crawl(t, domain.CrawlOptions{Incremental: true})
	require.True(t, result.Success)
	assert.True(t, f.drive.queries[0].ModifiedAfter.Equal(lastCrawl))

	stored, err := f.sources.Get(context.Background(), "src-1")
	require.NoError(t, err)
	assert.True(t, stored.LastCrawlAt.Equal(started))

	f.crawl(t, domain.CrawlOptions{})
	assert.True(t, f.drive.queries[1].ModifiedAfter.IsZero())
}

func TestDriveCrawler_Ingest(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ctx := context.Background()
	ingestion := &fakeIngestion{records: f.records, failFor: map[string]error{"b.pdf": errors.New("download timed out")}}
	f.crawler.SetIngestionService(ingestion)
	f.drive.put("root", driveFile("a", "t1", 1), driveFile("b", "t1", 1))

	result := f.crawl(t, domain.CrawlOptions{Ingest: true})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 1, result.PagesNew, "a failed ingestion is not a new page")
	assert.Equal(t, 1, result.PagesFailed)
	assert.Equal(t, []string{"a.pdf"}, ingestion.ingested)

	b, err := f.records.GetByIdentity(ctx, "src-1", IdentityHash("b"))
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusFailed, b.Status)

	// The failed file is offered again although its fingerprint is unchanged.
	ingestion.failFor = nil
	second := f.crawl(t, domain.CrawlOptions{Ingest: true})
	assert.True(t, second.Success)
	assert.Zero(t, second.PagesNew)
	assert.Zero(t, second.PagesChanged)
	assert.Equal(t, 1, second.PagesRetried)
	assert.Zero(t, second.PagesFailed)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ingestion.ingested)

	// Ingested files are not ingested again.
	third := f.crawl(t, domain.CrawlOptions{Ingest: true})
	assert.Zero(t, third.PagesRetried)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ingestion.ingested)
}

func TestDriveCrawler_RetriesFailedFilesMissingFromListing(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ingestion := &fakeIngestion{records: f.records, failFor: map[string]error{"b.pdf": downloadError(500)}}
	f.crawler.SetIngestionService(ingestion)
	f.drive.put("root", driveFile("a", "t1", 1), driveFile("b", "t1", 1))
	f.crawl(t, domain.CrawlOptions{Ingest: true})

	// An incremental listing leaves out the unmodified file.
	f.drive.put("root")
	ingestion.failFor = nil
	result := f.crawl(t, domain.CrawlOptions{Ingest: true, Incremental: true})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.PagesProcessed)
	assert.Equal(t, 1, result.PagesRetried)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ingestion.ingested)
}

func TestDriveCrawler_PagesCountAgainstQuota(t *testing.T) {
	source := crawlSource()
	source.Quota = domain.Quota{MaxPagesPerHour: 3}
	f := newCrawlerFixture(t, source)
	ctx := context.Background()

	var files []domain.DriveFile
	for i := 0; i < 8; i++ {
		files = append(files, driveFile("f"+strconv.Itoa(i), "t1", 1))
	}
	f.drive.put("root", files...)

	result := f.crawl(t, domain.CrawlOptions{})
	require.True(t, result.Success)
	assert.Equal(t, 8, result.PagesProcessed)

	stats, err := f.monitor.GetCrawlerHealthStats(ctx, "src-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.TotalRequests, "one listing plus one request per file")
	assert.Equal(t, 8, stats.PagesThisHour)
	assert.True(t, stats.QuotaExceeded)

	decision := f.monitor.CanSourceCrawl(ctx, "src-1")
	assert.False(t, decision.Allowed)
	assert.Equal(t, "daily or hourly quota exceeded", decision.Reason)

	_, refused, err := f.crawler.CrawlIfAllowed(ctx, "src-1", domain.CrawlOptions{})
	require.NoError(t, err)
	assert.False(t, refused.Success)
}

func TestDriveCrawler_DownloadBanSignalsStopCrawl(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ctx := context.Background()
	ingestion := &fakeIngestion{records: f.records, failFor: map[string]error{}}
	var files []domain.DriveFile
	for i := 0; i < 5; i++ {
		file := driveFile("f"+strconv.Itoa(i), "t1", 1)
		ingestion.failFor[file.Name] = downloadError(403)
		files = append(files, file)
	}
	f.crawler.SetIngestionService(ingestion)
	f.drive.put("root", files...)

	result := f.crawl(t, domain.CrawlOptions{Ingest: true})

	assert.False(t, result.Success)
	assert.Equal(t, BanSignalThreshold, result.PagesProcessed)
	assert.Equal(t, BanSignalThreshold, result.PagesFailed)
	assert.Contains(t, result.Errors[len(result.Errors)-1].Message, "source banned")

	decision := f.monitor.CanSourceCrawl(ctx, "src-1")
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "HTTP 403")

	stats, err := f.monitor.GetCrawlerHealthStats(ctx, "src-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Errors403)
	assert.Zero(t, stats.PagesThisHour, "failed downloads add no pages")
}

func TestDriveCrawler_CrawlIfAllowed(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed", func(t *testing.T) {
		f := newCrawlerFixture(t, crawlSource())
		f.drive.put("root", driveFile("a", "t1", 1))

		decision, result, err := f.crawler.CrawlIfAllowed(ctx, "src-1", domain.CrawlOptions{})

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.PagesNew)
	})

	t.Run("banned", func(t *testing.T) {
		f := newCrawlerFixture(t, crawlSource())
		require.NoError(t, f.monitor.MarkSourceAsBanned(ctx, "src-1", "captcha", domain.BanConfidenceHigh, time.Time{}))

		decision, result, err := f.crawler.CrawlIfAllowed(ctx, "src-1", domain.CrawlOptions{})

		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "banned until")
		assert.Zero(t, f.factories)
	})

	t.Run("unknown source", func(t *testing.T) {
		f := newCrawlerFixture(t, crawlSource())

		_, result, err := f.crawler.CrawlIfAllowed(ctx, "missing", domain.CrawlOptions{})

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, result)
	})
}

func TestDriveCrawler_CrawlAll(t *testing.T) {
	f := newCrawlerFixture(t, crawlSource())
	ctx := context.Background()
	inactive := crawlSource()
	inactive.ID = "src-2"
	inactive.Active = false
	require.NoError(t, f.sources.Save(ctx, inactive))
	f.drive.put("root", driveFile("a", "t1", 1))

	results, err := f.crawler.CrawlAll(ctx, domain.CrawlOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results["src-1"].Success)
}

func TestAllowedFileType(t *testing.T) {
	pdf := domain.DriveFile{Name: "Arrêt.PDF", MimeType: "application/pdf"}
	gdoc := domain.DriveFile{Name: "Loi 08-09", MimeType: "application/vnd.google-apps.document"}

	tests := []struct {
		name  string
		file  domain.DriveFile
		types []string
		want  bool
	}{
		{"empty allows all", pdf, nil, true},
		{"extension", pdf, []string{"pdf"}, true},
		{"dotted extension", pdf, []string{".pdf"}, true},
		{"mime type", pdf, []string{"application/pdf"}, true},
		{"other extension", pdf, []string{"docx"}, false},
		{"native doc by mime", gdoc, []string{"application/vnd.google-apps.document"}, true},
		{"native doc has no extension", gdoc, []string{"docx"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allowedFileType(tt.file, tt.types))
		})
	}
}

func TestFingerprint(t *testing.T) {
	base := driveFile("a", "2026-01-01T00:00:00Z", 100)
	moved := base
	moved.Name = "renamed.pdf"
	resized := base
	resized.Size = 101

	assert.Len(t, Fingerprint(base), 64)
	assert.Equal(t, Fingerprint(base), Fingerprint(moved))
	assert.NotEqual(t, Fingerprint(base), Fingerprint(resized))
	assert.NotEqual(t, IdentityHash("a"), IdentityHash("b"))
}

func TestFolderSet_Immutable(t *testing.T) {
	empty := folderSet{}
	one := empty.with("a")
	two := one.with("b")

	assert.False(t, empty.has("a"))
	assert.True(t, one.has("a"))
	assert.False(t, one.has("b"))
	assert.True(t, two.has("a"))
	assert.True(t, two.has("b"))
}
