package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure DriveCrawler implements the interface.
var _ driving.Crawler = (*DriveCrawler)(nil)

// Crawler defaults.
const (
	// ListPageSize is the largest page the Drive API returns.
	ListPageSize = 1000

	// BanSignalThreshold is the number of consecutive ban signals after
	// which a crawl marks its source as banned and stops.
	BanSignalThreshold = 3
)

// DriveCrawler traverses drive folders and records discovered files.
type DriveCrawler struct {
	sources   driven.SourceStore
	records   driven.PageRecordStore
	monitor   driving.HealthMonitor
	clients   driven.DriveClientFactory
	ingestion driving.IngestionService
	now       func() time.Time
}

// NewDriveCrawler creates a crawler. Clients are built per crawl by the factory.
func NewDriveCrawler(
	sources driven.SourceStore,
	records driven.PageRecordStore,
	monitor driving.HealthMonitor,
	clients driven.DriveClientFactory,
) *DriveCrawler {
	return &DriveCrawler{
		sources: sources,
		records: records,
		monitor: monitor,
		clients: clients,
		now:     time.Now,
	}
}

// SetIngestionService enables ingestion of new and changed files
// for crawls run with CrawlOptions.Ingest.
func (c *DriveCrawler) SetIngestionService(ingestion driving.IngestionService) {
	c.ingestion = ingestion
}

// CrawlIfAllowed crawls a source after the monitor allows it. A refused
// crawl returns the decision and a failed result without contacting the drive.
func (c *DriveCrawler) CrawlIfAllowed(ctx context.Context, sourceID string, opts domain.CrawlOptions) (domain.CrawlDecision, *domain.CrawlResult, error) {
	source, err := c.sources.Get(ctx, sourceID)
	if err != nil {
		return domain.CrawlDecision{}, nil, fmt.Errorf("get source: %w", err)
	}

	decision := c.monitor.CanSourceCrawl(ctx, sourceID)
	if !decision.Allowed {
		logger.Info("Crawl of %s refused: %s", sourceID, decision.Reason)
		result := domain.FailedCrawl(source.BaseLocation, errors.New(decision.Reason), c.now())
		return decision, &result, nil
	}

	result := c.CrawlSource(ctx, *source, opts)
	return decision, &result, nil
}

// CrawlAll crawls every active source the monitor allows, one after another.
// Results are keyed by source ID and include refused crawls.
func (c *DriveCrawler) CrawlAll(ctx context.Context, opts domain.CrawlOptions) (map[string]domain.CrawlResult, error) {
	sources, err := c.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	results := make(map[string]domain.CrawlResult, len(sources))
	var errs []error
	for _, source := range sources {
		if !source.Active || source.Kind != domain.SourceKindDrive {
			continue
		}
		_, result, err := c.CrawlIfAllowed(ctx, source.ID, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("crawl %s: %w", source.ID, err))
			continue
		}
		results[source.ID] = *result
	}

	if len(errs) > 0 {
		return results, errors.Join(errs...)
	}
	return results, nil
}

// CrawlSource walks the source's folder tree and upserts every eligible file.
// Fatal conditions abort the run with a single error entry; per-file failures
// are collected and the run continues.
func (c *DriveCrawler) CrawlSource(ctx context.Context, source domain.Source, opts domain.CrawlOptions) domain.CrawlResult {
	startedAt := c.now()
	logger.Section(fmt.Sprintf("Crawl %s", source.Name))

	if source.Kind != domain.SourceKindDrive {
		return domain.FailedCrawl(source.BaseLocation,
			fmt.Errorf("%w: unsupported source kind %q", domain.ErrUnsupportedType, source.Kind), startedAt)
	}
	if c.clients == nil {
		return domain.FailedCrawl(source.BaseLocation, errors.New("drive client factory not configured"), startedAt)
	}

	client, err := c.clients(ctx, source)
	if err != nil {
		return domain.FailedCrawl(source.BaseLocation, fmt.Errorf("create drive client: %w", err), startedAt)
	}

	root, err := client.GetFolder(ctx, source.FolderID())
	if err != nil {
		return domain.FailedCrawl(source.BaseLocation, fmt.Errorf("resolve root folder: %w", err), startedAt)
	}

	run := &crawlRun{
		crawler:   c,
		client:    client,
		source:    source,
		settings:  driveSettingsOf(source),
		config:    source.Crawl.WithDefaults(),
		opts:      opts,
		attempted: make(map[string]bool),
		result:    domain.CrawlResult{StartedAt: startedAt},
	}
	if opts.Incremental {
		run.modifiedAfter = source.LastCrawlAt
	}
	run.limiter = rate.NewLimiter(rate.Every(run.config.RateLimitDelay), 1)

	logger.Debug("Root folder %s (%s), incremental=%v, max pages=%d",
		root.Name, root.ID, opts.Incremental, run.config.MaxPages)

	if err := run.traverse(ctx, root.ID); err != nil {
		return domain.FailedCrawl(source.BaseLocation, err, startedAt)
	}

	run.result.FinishedAt = c.now()
	if run.result.Success {
		// The start time is stored so files modified during the run are
		// listed again by the next incremental crawl.
		if err := c.sources.TouchLastCrawl(ctx, source.ID, startedAt); err != nil {
			logger.Warn("crawler: updating last crawl of %s: %v", source.ID, err)
		}
	}

	logger.Info("Crawl of %s finished: %d processed, %d new, %d changed, %d failed, %d skipped",
		source.ID, run.result.PagesProcessed, run.result.PagesNew, run.result.PagesChanged,
		run.result.PagesFailed, run.result.PagesSkipped)
	return run.result
}

// ==================== Crawl run ====================

// crawlRun accumulates the state of one CrawlSource call.
type crawlRun struct {
	crawler       *DriveCrawler
	client        driven.DriveClient
	source        domain.Source
	settings      domain.DriveSettings
	config        domain.CrawlConfig
	opts          domain.CrawlOptions
	modifiedAfter time.Time
	limiter       *rate.Limiter

	banSignals int
	attempted  map[string]bool // record IDs handed to ingestion this run
	result     domain.CrawlResult
}

type folderRef struct {
	id    string
	depth int
}

// traverse drains the folder worklist. A returned error is fatal for the run.
// A ban or a cancellation ends the run early with Success=false and the
// counters gathered so far.
func (r *crawlRun) traverse(ctx context.Context, rootID string) error {
	stack := []folderRef{{id: rootID}}
	visited := folderSet{}

	for len(stack) > 0 && r.result.PagesProcessed < r.config.MaxPages {
		folder := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.has(folder.id) {
			continue
		}
		visited = visited.with(folder.id)

		files, err := r.listFolder(ctx, folder.id)
		if err != nil {
			if folder.id == rootID {
				return fmt.Errorf("list root folder: %w", err)
			}
			r.fail(folder.id, err)
			if r.banned() {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		for _, file := range files {
			if file.IsFolder {
				if r.settings.Recursive && !visited.has(file.ID) {
					stack = append(stack, folderRef{id: file.ID, depth: folder.depth + 1})
				}
				continue
			}
			if r.result.PagesProcessed >= r.config.MaxPages {
				logger.Debug("Reached max pages (%d)", r.config.MaxPages)
				break
			}
			if err := r.processFile(ctx, file, folder.depth); err != nil {
				r.result.Errors = append(r.result.Errors, r.crawlError(file.WebViewLink, err))
				return nil
			}
			if r.banned() {
				return nil
			}
		}
	}

	if r.ingesting() && !r.retryFailed(ctx) {
		return nil
	}

	r.result.Success = true
	return nil
}

// banned reports whether the run has seen enough ban signals to stop, and
// records the stop in the result.
func (r *crawlRun) banned() bool {
	if r.banSignals < BanSignalThreshold {
		return false
	}
	r.result.Errors = append(r.result.Errors, r.crawlError(r.source.BaseLocation,
		fmt.Errorf("%w: stopped after %d ban signals", domain.ErrSourceBanned, r.banSignals)))
	return true
}

func (r *crawlRun) ingesting() bool {
	return r.opts.Ingest && r.crawler.ingestion != nil
}

// listFolder fetches every page of a folder's children, recording one
// health metric per request.
func (r *crawlRun) listFolder(ctx context.Context, folderID string) ([]domain.DriveFile, error) {
	var files []domain.DriveFile
	query := domain.ListQuery{
		FolderID:      folderID,
		ModifiedAfter: r.modifiedAfter,
		PageSize:      ListPageSize,
	}

	for {
		start := time.Now()
		page, err := r.client.ListChildren(ctx, query)
		elapsed := time.Since(start)

		if err != nil {
			r.observe(ctx, err, elapsed, false)
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		r.observe(ctx, nil, elapsed, false)

		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		query.PageToken = page.NextPageToken
	}
}

// observe records a request with the monitor and tracks consecutive ban
// signals. The source is banned once the threshold is reached. Folder
// listings are requests only; page requests count against the quotas.
func (r *crawlRun) observe(ctx context.Context, err error, elapsed time.Duration, page bool) {
	status := 200
	body := ""
	if err != nil {
		status = domain.StatusCodeOf(err)
		body = err.Error()
	}

	signal := DetectBanSignal(status, body)
	r.crawler.monitor.RecordCrawlMetric(ctx, r.source.ID, domain.CrawlMetric{
		Success:      err == nil,
		StatusCode:   status,
		ResponseTime: elapsed,
		BanSignal:    signal.Detected,
		Page:         page,
	})

	if !signal.Detected {
		r.banSignals = 0
		return
	}
	r.banSignals++
	logger.Warn("crawler: ban signal %d/%d on %s: %s", r.banSignals, BanSignalThreshold, r.source.ID, signal.Reason)
	if r.banSignals == BanSignalThreshold {
		if err := r.crawler.monitor.MarkSourceAsBanned(ctx, r.source.ID, signal.Reason, signal.Confidence, time.Time{}); err != nil {
			logger.Warn("crawler: marking %s as banned: %v", r.source.ID, err)
		}
	}
}

// processFile filters, throttles and upserts one file. A returned error ends
// the run; per-file failures are recorded in the result instead.
func (r *crawlRun) processFile(ctx context.Context, file domain.DriveFile, depth int) error {
	if !allowedFileType(file, r.settings.FileTypes) {
		r.result.PagesSkipped++
		return nil
	}
	if file.Size > r.config.MaxFileSize {
		logger.Debug("Skipping %s: %d bytes exceeds %d", file.Name, file.Size, r.config.MaxFileSize)
		r.result.PagesSkipped++
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}

	r.result.PagesProcessed++
	start := time.Now()
	outcome, err := r.crawler.records.Upsert(ctx, recordForFile(r.source.ID, file, depth))
	if err != nil {
		r.fail(fileURL(file), fmt.Errorf("upsert record: %w", err))
		return nil
	}

	retry := outcome.Record.Status == domain.PageStatusFailed
	if !outcome.IsNew && !outcome.HasChanged && !(retry && r.ingesting()) {
		r.observePage(ctx, nil, time.Since(start))
		return nil
	}

	var ingestErr error
	if r.ingesting() {
		ingestErr = r.ingest(ctx, outcome.Record)
	}
	r.observePage(ctx, ingestErr, time.Since(start))
	if ingestErr != nil {
		r.fail(fileURL(file), ingestErr)
		return nil
	}

	switch {
	case outcome.IsNew:
		r.result.PagesNew++
		logger.Debug("New file %s", file.Name)
	case outcome.HasChanged:
		r.result.PagesChanged++
		logger.Debug("Changed file %s", file.Name)
	default:
		r.result.PagesRetried++
		logger.Debug("Retried file %s", file.Name)
	}
	return nil
}

// ingest hands a record to the ingestion service, which leaves it in status
// crawled or failed.
func (r *crawlRun) ingest(ctx context.Context, record domain.PageRecord) error {
	r.attempted[record.ID] = true
	if _, err := r.crawler.ingestion.IngestRecord(ctx, r.source, record); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

// observePage records one processed file. Only download failures count as
// failed requests; content that cannot be indexed was still fetched.
func (r *crawlRun) observePage(ctx context.Context, err error, elapsed time.Duration) {
	if err != nil && !errors.Is(err, domain.ErrDownload) {
		err = nil
	}
	r.observe(ctx, err, elapsed, true)
}

// retryFailed ingests again the records of this source whose last ingestion
// failed and that the traversal did not reach, such as unmodified files an
// incremental listing leaves out. It returns false when ban signals stop it.
func (r *crawlRun) retryFailed(ctx context.Context) bool {
	records, err := r.crawler.records.ListBySource(ctx, r.source.ID)
	if err != nil {
		logger.Warn("crawler: listing records of %s for retry: %v", r.source.ID, err)
		return true
	}

	for _, record := range records {
		if record.Status != domain.PageStatusFailed || record.File == nil || r.attempted[record.ID] {
			continue
		}
		if r.result.PagesProcessed >= r.config.MaxPages || ctx.Err() != nil {
			return true
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return true
		}

		r.result.PagesProcessed++
		start := time.Now()
		err := r.ingest(ctx, record)
		r.observePage(ctx, err, time.Since(start))
		if err != nil {
			r.fail(record.URL, err)
		} else {
			r.result.PagesRetried++
			logger.Debug("Retried file %s", record.Title)
		}
		if r.banned() {
			return false
		}
	}
	return true
}

func (r *crawlRun) fail(location string, err error) {
	r.result.PagesFailed++
	r.result.Errors = append(r.result.Errors, r.crawlError(location, err))
	logger.Warn("crawler: %s: %v", location, err)
}

func (r *crawlRun) crawlError(location string, err error) domain.CrawlError {
	return domain.CrawlError{URL: location, Message: err.Error(), Timestamp: r.crawler.now()}
}

// ==================== Helpers ====================

// folderSet is an immutable set of folder IDs. with returns a new set.
type folderSet struct {
	ids map[string]struct{}
}

func (s folderSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s folderSet) with(id string) folderSet {
	next := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return folderSet{ids: next}
}

// IdentityHash is the stable identity of a drive file.
func IdentityHash(fileID string) string {
	sum := sha256.Sum256([]byte(fileID))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is the change fingerprint of a drive file. It is built from
// listing metadata only, so an edit that keeps modifiedTime and size is not seen.
func Fingerprint(file domain.DriveFile) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", file.ID, file.ModifiedTime, file.Size)))
	return hex.EncodeToString(sum[:])
}

func recordForFile(sourceID string, file domain.DriveFile, depth int) domain.PageRecord {
	return domain.PageRecord{
		SourceID:     sourceID,
		URL:          fileURL(file),
		IdentityHash: IdentityHash(file.ID),
		ContentHash:  Fingerprint(file),
		Depth:        depth,
		Title:        file.Name,
		File:         file.Meta(),
	}
}

func fileURL(file domain.DriveFile) string {
	if file.WebViewLink != "" {
		return file.WebViewLink
	}
	return "https://drive.google.com/file/d/" + file.ID + "/view"
}

// allowedFileType matches a file against MIME types ("application/pdf") or
// extensions ("pdf", ".docx"). An empty list allows everything.
func allowedFileType(file domain.DriveFile, types []string) bool {
	if len(types) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if strings.Contains(t, "/") {
			if t == strings.ToLower(file.MimeType) {
				return true
			}
			continue
		}
		if ext != "" && strings.TrimPrefix(t, ".") == ext {
			return true
		}
	}
	return false
}

func driveSettingsOf(source domain.Source) domain.DriveSettings {
	settings, ok := source.DriveSettings()
	if !ok {
		return domain.DriveSettings{FolderID: source.BaseLocation, Recursive: true}
	}
	return settings
}
