package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	userAgent  = "suprss/1.0"
	maxSnippet = 500
)

// Result holds the outcome of a conditional feed fetch: normalized metadata
// and items, plus the caching validators to store for the next request.
// When NotModified is true the item list is empty and the validators echo
// the ones the caller supplied.
type Result struct {
	Title        string
	Description  string
	Items        []Item
	ETag         string
	LastModified string
	NotModified  bool
}

// Item is one normalized feed entry. Published is nil when the upstream
// document carries no parseable date; GUID may be empty.
type Item struct {
	Title     string
	Link      string
	GUID      string
	Published *time.Time
	Author    string
	Summary   string
	Snippet   string
}

// Source fetches and parses one feed URL. The refresh orchestrator depends
// on this interface so the HTTP/parsing stack stays swappable in tests.
type Source interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*Result, error)
}

// Fetcher is the production Source: a conditional HTTP GET followed by
// gofeed parsing. Stateless and safe to retry.
type Fetcher struct {
	parser *gofeed.Parser
	client *http.Client
	policy *bluemonday.Policy
}

// NewFetcher creates a feed fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Fetcher{
		parser: parser,
		client: &http.Client{Timeout: timeout},
		policy: bluemonday.StrictPolicy(),
	}
}

// Fetch performs a conditional GET of the feed URL. Stored validators are
// sent as If-None-Match / If-Modified-Since; a 304 response skips parsing
// entirely. Network failures, non-success statuses, and unparseable bodies
// all surface as a single error — recording it is the caller's job.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{NotModified: true, ETag: etag, LastModified: lastModified}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", url, err)
	}

	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}

	result := &Result{
		Title:        strings.TrimSpace(parsed.Title),
		Description:  strings.TrimSpace(parsed.Description),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	for _, item := range parsed.Items {
		result.Items = append(result.Items, f.normalizeItem(item))
	}
	return result, nil
}

// normalizeItem maps a parsed entry into the domain item. Missing dates,
// guids, and authors are absorbed here so ingestion never blocks on
// upstream data quality.
func (f *Fetcher) normalizeItem(item *gofeed.Item) Item {
	var published *time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed
	}

	var author string
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	return Item{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		GUID:      strings.TrimSpace(item.GUID),
		Published: published,
		Author:    author,
		Summary:   summary,
		Snippet:   f.snippet(summary),
	}
}

// snippet strips markup from the summary and bounds its length, giving a
// plain-text excerpt suitable for list views and search.
func (f *Fetcher) snippet(html string) string {
	text := strings.TrimSpace(f.policy.Sanitize(html))
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxSnippet {
		text = text[:maxSnippet]
	}
	return text
}
