package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/ikolomin/siterag/internal/core/domain"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; siterag/1.0)"
	maxBodyBytes = 4 << 20
)

// Fetcher downloads a single page and extracts its readable text.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// NewFetcherWithClient is used by the crawler to share one HTTP client.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*domain.CapturedPage, error) {
	html, finalURL, err := f.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extractReadable(html, finalURL)
}

func (f *Fetcher) download(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "fetch page", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", domain.WrapError(domain.ErrTemporary, "fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", "", domain.WrapError(domain.ErrTemporary, "fetch page",
			fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL))
	}
	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("fetch page: HTTP %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", domain.WrapError(domain.ErrTemporary, "read page body", err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(body), finalURL, nil
}

func extractReadable(html, pageURL string) (*domain.CapturedPage, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse page url", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract readable text: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("extract readable text: no content at %s", pageURL)
	}
	return &domain.CapturedPage{
		URL:   pageURL,
		Title: article.Title,
		Text:  text,
	}, nil
}
