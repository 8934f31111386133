package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

var (
	crawlIncremental bool
	crawlIngest      bool
	crawlForce       bool
	crawlJSON        bool

	healthHours int
	healthJSON  bool

	banReason     string
	banConfidence string
	banRetryAfter time.Duration

	metricsDays int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [source-id]",
	Short: "Crawl a source",
	Long: `Lists the source's folder tree, records new and changed files and,
with --ingest, downloads and indexes them.

The health monitor is consulted first: banned sources and sources over their
hourly or daily quota are skipped unless --force is given. Without a source
ID every active source is crawled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

var canCrawlCmd = &cobra.Command{
	Use:   "can-crawl [source-id]",
	Short: "Check whether a source may be crawled now",
	Args:  cobra.ExactArgs(1),
	RunE:  runCanCrawl,
}

var healthCmd = &cobra.Command{
	Use:   "health [source-id]",
	Short: "Show crawler health",
	Long:  `Shows request counts, error rates, response times, quota use and ban state.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHealth,
}

var banCmd = &cobra.Command{
	Use:   "ban [source-id]",
	Short: "Mark a source as banned",
	Args:  cobra.ExactArgs(1),
	RunE:  runBan,
}

var unbanCmd = &cobra.Command{
	Use:   "unban [source-id]",
	Short: "Clear a source's ban",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnban,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Manage crawl metrics",
}

var metricsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old hourly health buckets",
	RunE:  runMetricsClean,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlIncremental, "incremental", true, "only list files modified since the last crawl")
	crawlCmd.Flags().BoolVar(&crawlIngest, "ingest", true, "download and index new and changed files")
	crawlCmd.Flags().BoolVar(&crawlForce, "force", false, "bypass the ban and quota gate")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "output results as JSON")

	healthCmd.Flags().IntVar(&healthHours, "hours", 24, "reporting window in hours")
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output as JSON")

	banCmd.Flags().StringVar(&banReason, "reason", "manual ban", "reason recorded with the ban")
	banCmd.Flags().StringVar(&banConfidence, "confidence", string(domain.BanConfidenceHigh), "confidence: low, medium or high")
	banCmd.Flags().DurationVar(&banRetryAfter, "retry-after", domain.DefaultBanDuration, "how long until crawling may resume")

	metricsCleanCmd.Flags().IntVar(&metricsDays, "days", 30, "retention in days")
	metricsCmd.AddCommand(metricsCleanCmd)

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(canCrawlCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if crawlerService == nil {
		return errors.New("crawler not configured")
	}
	ctx := cmd.Context()
	opts := domain.CrawlOptions{Incremental: crawlIncremental, Ingest: crawlIngest}

	if len(args) == 0 {
		cmd.Println("Crawling all active sources...")
		results, err := crawlerService.CrawlAll(ctx, opts)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		if crawlJSON {
			return printJSON(cmd, results)
		}
		for id, result := range results {
			printCrawlResult(cmd, id, result)
		}
		return nil
	}

	sourceID := args[0]
	var result domain.CrawlResult
	if crawlForce {
		if sourceService == nil {
			return errors.New("source service not configured")
		}
		src, err := sourceService.Get(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to get source: %w", err)
		}
		result = crawlerService.CrawlSource(ctx, *src, opts)
	} else {
		decision, res, err := crawlerService.CrawlIfAllowed(ctx, sourceID, opts)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		if !decision.Allowed {
			cmd.Println(newPainter(cmd).Warn("Crawl skipped: %s", decision.Reason))
			return nil
		}
		result = *res
	}

	if crawlJSON {
		return printJSON(cmd, result)
	}
	printCrawlResult(cmd, sourceID, result)
	return nil
}

func printCrawlResult(cmd *cobra.Command, sourceID string, r domain.CrawlResult) {
	p := newPainter(cmd)
	status := p.Ok("ok")
	if !r.Success {
		status = p.Bad("failed")
	}
	cmd.Printf("%s: %s in %s\n", sourceID, status, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	cmd.Printf("  processed %s, new %s, changed %s, skipped %d, failed %s\n",
		p.Ok("%d", r.PagesProcessed), p.Ok("%d", r.PagesNew), p.Ok("%d", r.PagesChanged),
		r.PagesSkipped, p.Bad("%d", r.PagesFailed))
	if r.PagesRetried > 0 {
		cmd.Printf("  retried %s previously failed\n", p.Ok("%d", r.PagesRetried))
	}
	for _, e := range r.Errors {
		cmd.Printf("  %s %s\n", p.Bad("error:"), e.Message)
	}
}

func runCanCrawl(cmd *cobra.Command, args []string) error {
	if healthMonitor == nil {
		return errors.New("health monitor not configured")
	}
	decision := healthMonitor.CanSourceCrawl(cmd.Context(), args[0])
	p := newPainter(cmd)
	if decision.Allowed {
		cmd.Println(p.Ok("yes"))
		return nil
	}
	cmd.Printf("%s: %s\n", p.Bad("no"), decision.Reason)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	if healthMonitor == nil {
		return errors.New("health monitor not configured")
	}
	ctx := cmd.Context()

	var stats []domain.CrawlerHealthStats
	if len(args) == 1 {
		s, err := healthMonitor.GetCrawlerHealthStats(ctx, args[0], healthHours)
		if err != nil {
			return fmt.Errorf("failed to get health: %w", err)
		}
		if s == nil {
			return fmt.Errorf("source %s not found", args[0])
		}
		stats = append(stats, *s)
	} else {
		all, err := healthMonitor.AllSourcesHealth(ctx, healthHours)
		if err != nil {
			return fmt.Errorf("failed to get health: %w", err)
		}
		stats = all
	}

	if healthJSON {
		return printJSON(cmd, stats)
	}
	if len(stats) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}
	r := newReport(cmd)
	for i := range stats {
		cmd.Println(renderHealth(r, &stats[i], healthHours))
	}
	return nil
}

func renderHealth(r report, s *domain.CrawlerHealthStats, hours int) string {
	state := r.good.Render("OK")
	switch {
	case s.CurrentlyBanned:
		state = r.bad.Render("BANNED") + " " + s.BanReason
	case s.QuotaExceeded:
		state = r.bad.Render("QUOTA EXCEEDED")
	}

	lines := []string{
		r.title.Render(fmt.Sprintf("%s (%s)", valueOr(s.SourceName, s.SourceID), s.SourceID)),
		r.row("State", state),
		r.row(fmt.Sprintf("Requests (%dh)", hours), fmt.Sprintf("%d (%d ok, %d failed)", s.TotalRequests, s.SuccessfulRequests, s.FailedRequests)),
		r.row("Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate)),
		r.row("Response avg/med/p95", fmt.Sprintf("%.0f / %.0f / %.0f ms", s.AvgResponseTimeMs, s.MedianResponseMs, s.P95ResponseMs)),
		r.row("Errors 429/403/503/5xx", fmt.Sprintf("%d / %d / %d / %d", s.Errors429, s.Errors403, s.Errors503, s.Errors5xx)),
		r.row("Ban detections", s.BanDetections),
		r.row("Pages hour/day", fmt.Sprintf("%d / %d (quota %s / %s)", s.PagesThisHour, s.PagesThisDay,
			quotaValue(s.Quota.MaxPagesPerHour), quotaValue(s.Quota.MaxPagesPerDay))),
		r.row("Last crawl", formatWhen(s.LastCrawlAt)),
	}
	if s.CurrentlyBanned {
		lines = append(lines, r.row("Retry after", formatWhen(s.RetryAfter)))
	}
	return r.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func runBan(cmd *cobra.Command, args []string) error {
	if healthMonitor == nil {
		return errors.New("health monitor not configured")
	}
	confidence := domain.BanConfidence(strings.ToLower(banConfidence))
	switch confidence {
	case domain.BanConfidenceLow, domain.BanConfidenceMedium, domain.BanConfidenceHigh:
	default:
		return fmt.Errorf("invalid confidence %q: use low, medium or high", banConfidence)
	}
	retry := time.Now().Add(banRetryAfter)
	if err := healthMonitor.MarkSourceAsBanned(cmd.Context(), args[0], banReason, confidence, retry); err != nil {
		return fmt.Errorf("failed to ban source: %w", err)
	}
	cmd.Printf("Banned %s until %s\n", args[0], formatWhen(retry))
	return nil
}

func runUnban(cmd *cobra.Command, args []string) error {
	if healthMonitor == nil {
		return errors.New("health monitor not configured")
	}
	if err := healthMonitor.UnbanSource(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to unban source: %w", err)
	}
	cmd.Printf("Unbanned %s\n", args[0])
	return nil
}

func runMetricsClean(cmd *cobra.Command, _ []string) error {
	if healthMonitor == nil {
		return errors.New("health monitor not configured")
	}
	if metricsDays <= 0 {
		return errors.New("--days must be positive")
	}
	n, err := healthMonitor.CleanOldMetrics(cmd.Context(), time.Duration(metricsDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to clean metrics: %w", err)
	}
	cmd.Printf("Deleted %d hourly buckets older than %d days\n", n, metricsDays)
	return nil
}
