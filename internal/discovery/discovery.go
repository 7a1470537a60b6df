package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"plenary/internal/identity"
	"plenary/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Item is one discovered session candidate.
type Item struct {
	URL       string
	Title     string
	Published time.Time
}

// Discoverer finds session URLs from syndication feeds or listing pages.
type Discoverer struct {
	httpClient *http.Client
	parser     *gofeed.Parser
}

// Option customizes the discoverer.
type Option func(*Discoverer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Discoverer) {
		if client != nil {
			d.httpClient = client
			d.parser.Client = client
		}
	}
}

// New constructs a discoverer.
func New(opts ...Option) *Discoverer {
	client := &http.Client{Timeout: defaultHTTPTimeout}
	parser := gofeed.NewParser()
	parser.Client = client
	d := &Discoverer{httpClient: client, parser: parser}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromFeed parses an RSS or Atom feed and returns its session candidates,
// newest first, deduplicated by session identity.
func (d *Discoverer) FromFeed(ctx context.Context, feedURL string) ([]Item, error) {
	const op = "parse feed"

	feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, services.Retryable("discovery", op, "fetch or parse feed", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}
		item := Item{URL: link, Title: strings.TrimSpace(entry.Title)}
		if entry.PublishedParsed != nil {
			item.Published = entry.PublishedParsed.UTC()
		}
		items = append(items, item)
	}
	items = dedupe(items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	return items, nil
}

// FromIndex scrapes anchor links from a listing page, keeping only links
// under the page's own host that contain the given path fragment.
func (d *Discoverer) FromIndex(ctx context.Context, pageURL, pathFragment string) ([]Item, error) {
	const op = "scrape index"

	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "discovery", op,
			"index URL is invalid", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discovery", op, "build request", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, services.Retryable("discovery", op, "fetch index page", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, services.Retryable("discovery", op,
			fmt.Sprintf("index page returned %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discovery", op, "parse html", err)
	}

	var items []Item
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if resolved.Host != base.Host {
			return
		}
		if pathFragment != "" && !strings.Contains(resolved.Path, pathFragment) {
			return
		}
		items = append(items, Item{
			URL:   resolved.String(),
			Title: strings.TrimSpace(sel.Text()),
		})
	})
	return dedupe(items), nil
}

// dedupe collapses items that resolve to the same session identity, keeping
// the first occurrence. Items whose URL cannot be resolved are dropped.
func dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		id, err := identity.Resolve(item.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}
