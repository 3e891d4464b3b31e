package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/ikolomin/siterag/internal/core/domain"
)

const (
	defaultMaxPages = 25
	defaultMaxDepth = 2
)

// Crawler walks same-origin links breadth-first starting from a page.
// By default it stays under the start page's path; allowBackwardLinks
// widens the boundary to the whole origin.
type Crawler struct {
	fetcher  *Fetcher
	limiter  *rate.Limiter
	maxPages int
	maxDepth int
	logger   *slog.Logger
}

func NewCrawler(maxPages, maxDepth int, logger *slog.Logger) *Crawler {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Crawler{
		fetcher:  NewFetcherWithClient(&http.Client{Timeout: 20 * time.Second}),
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		maxPages: maxPages,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

type crawlTarget struct {
	url   string
	depth int
}

func (c *Crawler) Crawl(ctx context.Context, startURL string, allowBackwardLinks bool) ([]domain.CapturedPage, error) {
	start, err := url.Parse(startURL)
	if err != nil || !start.IsAbs() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "crawl start url", err)
	}

	pathPrefix := start.Path
	if !strings.HasSuffix(pathPrefix, "/") {
		pathPrefix += "/"
	}

	visited := map[string]bool{}
	queue := []crawlTarget{{url: canonicalPageURL(start), depth: 0}}
	var pages []domain.CapturedPage

	for len(queue) > 0 && len(pages) < c.maxPages {
		target := queue[0]
		queue = queue[1:]
		if visited[target.url] {
			continue
		}
		visited[target.url] = true

		if err := c.limiter.Wait(ctx); err != nil {
			return pages, err
		}

		body, finalURL, err := c.fetcher.download(ctx, target.url)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			c.logger.Warn("skipping page", "url", target.url, "error", err)
			continue
		}

		page, err := extractReadable(body, finalURL)
		if err != nil {
			c.logger.Warn("skipping page", "url", target.url, "error", err)
		} else {
			pages = append(pages, *page)
		}

		if target.depth >= c.maxDepth {
			continue
		}
		for _, link := range extractLinks(body, finalURL) {
			if visited[link] {
				continue
			}
			if !c.inBounds(link, start, pathPrefix, allowBackwardLinks) {
				continue
			}
			queue = append(queue, crawlTarget{url: link, depth: target.depth + 1})
		}
	}
	return pages, nil
}

func (c *Crawler) inBounds(link string, start *url.URL, pathPrefix string, allowBackwardLinks bool) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	if parsed.Scheme != start.Scheme || parsed.Host != start.Host {
		return false
	}
	if allowBackwardLinks {
		return true
	}
	linkPath := parsed.Path
	if !strings.HasSuffix(linkPath, "/") {
		linkPath += "/"
	}
	return strings.HasPrefix(linkPath, pathPrefix)
}

// extractLinks returns absolute, fragment-free http(s) links found in the page.
func extractLinks(body, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					continue
				}
				link := canonicalPageURL(resolved)
				if !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}

func canonicalPageURL(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawQuery = ""
	return clean.String()
}
