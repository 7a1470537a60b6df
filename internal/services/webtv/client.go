package webtv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"plenary/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	userAgent          = "plenary/1.0 (+session archive pipeline)"
	maxBodyBytes       = 8 << 20
)

// SessionMetadata is everything the pipeline learns about a session from its
// public page before any media is touched.
type SessionMetadata struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	EntryID      string    `json:"entry_id,omitempty"`
	Language     string    `json:"language,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	SourceURL    string    `json:"source_url"`
}

// Client fetches and parses session pages.
type Client struct {
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a metadata client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var entryIDPattern = regexp.MustCompile(`(?i)entry_?id["'\s:=]+["']?([0-9]_[a-z0-9]+)`)

// Fetch downloads the session page and extracts its metadata. A page with no
// recognizable title is treated as invalid rather than retried.
func (c *Client) Fetch(ctx context.Context, sourceURL string) (*SessionMetadata, error) {
	const op = "fetch metadata"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "webtv", op, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, services.Wrap(services.ErrNotFound, "webtv", op,
			fmt.Sprintf("session page returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return nil, services.Retryable("webtv", op,
			fmt.Sprintf("session page returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, services.Wrap(services.ErrValidation, "webtv", op,
			fmt.Sprintf("session page returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(op, err)
	}

	metadata, err := parsePage(string(body), sourceURL)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

func parsePage(html, sourceURL string) (*SessionMetadata, error) {
	const op = "parse metadata"

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "webtv", op, "parse html", err)
	}

	metadata := &SessionMetadata{SourceURL: sourceURL}
	metadata.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	if metadata.Title == "" {
		return nil, services.Wrap(services.ErrValidation, "webtv", op,
			"page carries no session title", nil)
	}

	metadata.Description = firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
	)
	metadata.ThumbnailURL = metaContent(doc, `meta[property="og:image"]`)
	if lang, ok := doc.Find("html").Attr("lang"); ok {
		metadata.Language = strings.TrimSpace(lang)
	}
	if published := metaContent(doc, `meta[property="article:published_time"]`); published != "" {
		if parsed, err := time.Parse(time.RFC3339, published); err == nil {
			metadata.PublishedAt = parsed.UTC()
		}
	}
	doc.Find(`meta[property="article:tag"], meta[name="keywords"]`).Each(func(_ int, sel *goquery.Selection) {
		content, _ := sel.Attr("content")
		for _, tag := range strings.Split(content, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				metadata.Categories = append(metadata.Categories, tag)
			}
		}
	})
	if match := entryIDPattern.FindStringSubmatch(html); len(match) == 2 {
		metadata.EntryID = match[1]
	}

	// When the page has no usable description, fall back to extracting the
	// readable article body.
	if metadata.Description == "" {
		if parsed, err := url.Parse(sourceURL); err == nil {
			if article, err := readability.FromReader(strings.NewReader(html), parsed); err == nil {
				metadata.Description = condense(article.TextContent, 600)
			}
		}
	}
	return metadata, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func condense(text string, limit int) string {
	clean := strings.Join(strings.Fields(text), " ")
	runes := []rune(clean)
	if len(runes) > limit {
		clean = strings.TrimSpace(string(runes[:limit])) + "..."
	}
	return clean
}

func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "webtv", op, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "webtv", op, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "webtv", op, "request timed out", err)
	}
	return services.Retryable("webtv", op, "request failed", err)
}
