package domain

import "time"

type CaptureMode string

const (
	CaptureModeScrape CaptureMode = "scrape"
	CaptureModeCrawl  CaptureMode = "crawl"
)

type CaptureStatus string

const (
	CaptureStatusPending    CaptureStatus = "pending"
	CaptureStatusProcessing CaptureStatus = "processing"
	CaptureStatusReady      CaptureStatus = "ready"
	CaptureStatusFailed     CaptureStatus = "failed"
)

// CaptureJob tracks one capture request through the ingestion pipeline.
type CaptureJob struct {
	ID                 string        `json:"id"`
	URL                string        `json:"url"`
	Mode               CaptureMode   `json:"mode"`
	AllowBackwardLinks bool          `json:"allow_backward_links"`
	ClearExisting      bool          `json:"clear_existing"`
	Status             CaptureStatus `json:"status"`
	PagesIndexed       int           `json:"pages_indexed"`
	PassagesIndexed    int           `json:"passages_indexed"`
	Error              string        `json:"error,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// CapturedPage is the readable text extracted from one fetched page.
type CapturedPage struct {
	URL   string
	Title string
	Text  string
}
