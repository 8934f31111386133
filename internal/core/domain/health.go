package domain

import "time"

// BanConfidence is the certainty attached to a detected ban.
type BanConfidence string

// Ban confidence levels.
const (
	BanConfidenceLow    BanConfidence = "low"
	BanConfidenceMedium BanConfidence = "medium"
	BanConfidenceHigh   BanConfidence = "high"
)

// IsValid returns true if the confidence level is recognised.
func (c BanConfidence) IsValid() bool {
	switch c {
	case BanConfidenceLow, BanConfidenceMedium, BanConfidenceHigh:
		return true
	default:
		return false
	}
}

// DefaultBanDuration is the retry delay applied when none is given.
const DefaultBanDuration = time.Hour

// CrawlMetric is the outcome of one request made on behalf of a source.
type CrawlMetric struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	BanSignal    bool

	// Page marks a request that processed a file. Only successful page
	// requests count against the hourly and daily quotas; folder listings
	// are requests without a page.
	Page bool
}

// CountsPage reports whether the metric adds to the page counters.
func (m CrawlMetric) CountsPage() bool {
	return m.Success && m.Page
}

// HealthMetric is the hourly aggregate bucket for a source.
// At most one bucket exists per (source, hour).
type HealthMetric struct {
	SourceID           string
	HourStart          time.Time
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	Errors429          int
	Errors403          int
	Errors503          int
	Errors5xx          int
	BanDetections      int
	PagesThisHour      int
	PagesThisDay       int
	AvgResponseTimeMs  float64
}

// BanStatus is the single ban row of a source.
type BanStatus struct {
	SourceID   string
	IsBanned   bool
	BannedAt   time.Time
	RetryAfter time.Time
	Reason     string
	Confidence BanConfidence
}

// Active reports whether the ban still applies at now.
func (b *BanStatus) Active(now time.Time) bool {
	return b != nil && b.IsBanned && now.Before(b.RetryAfter)
}

// Expired reports whether the ban flag is set but its retry time has passed.
func (b *BanStatus) Expired(now time.Time) bool {
	return b != nil && b.IsBanned && !now.Before(b.RetryAfter)
}

// CrawlerHealthStats is an aggregate snapshot over a window of buckets.
type CrawlerHealthStats struct {
	SourceID           string        `json:"source_id"`
	SourceName         string        `json:"source_name"`
	TotalRequests      int           `json:"total_requests"`
	SuccessfulRequests int           `json:"successful_requests"`
	FailedRequests     int           `json:"failed_requests"`
	SuccessRate        float64       `json:"success_rate"`
	AvgResponseTimeMs  float64       `json:"avg_response_time_ms"`
	MedianResponseMs   float64       `json:"median_response_time_ms"`
	P95ResponseMs      float64       `json:"p95_response_time_ms"`
	Errors429          int           `json:"errors_429"`
	Errors403          int           `json:"errors_403"`
	Errors503          int           `json:"errors_503"`
	Errors5xx          int           `json:"errors_5xx"`
	BanDetections      int           `json:"ban_detections"`
	PagesThisHour      int           `json:"pages_this_hour"`
	PagesThisDay       int           `json:"pages_this_day"`
	Quota              Quota         `json:"quota"`
	QuotaExceeded      bool          `json:"quota_exceeded"`
	CurrentlyBanned    bool          `json:"currently_banned"`
	BanReason          string        `json:"ban_reason,omitempty"`
	BanConfidence      BanConfidence `json:"ban_confidence,omitempty"`
	LastBanAt          time.Time     `json:"last_ban_at,omitempty"`
	RetryAfter         time.Time     `json:"retry_after,omitempty"`
	PeriodStart        time.Time     `json:"period_start"`
	PeriodEnd          time.Time     `json:"period_end"`
	LastCrawlAt        time.Time     `json:"last_crawl_at,omitempty"`
}

// CrawlDecision is the gating verdict for a crawl attempt.
type CrawlDecision struct {
	Allowed bool   `json:"can_crawl"`
	Reason  string `json:"reason,omitempty"`
}

// BanSignal is the classification of one response as a possible ban.
type BanSignal struct {
	Detected   bool
	Confidence BanConfidence
	Reason     string
}
