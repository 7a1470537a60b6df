package discovery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"plenary/internal/discovery"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Meetings</title>
<item>
  <title>42nd plenary meeting</title>
  <link>https://webtv.example.org/en/asset?entry=k1</link>
  <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>43rd plenary meeting</title>
  <link>https://webtv.example.org/en/asset?entry=k2</link>
  <pubDate>Tue, 03 Mar 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Duplicate spelling of the 42nd</title>
  <link>HTTPS://webtv.example.org:443/en/asset?entry=k1&amp;utm_source=feed</link>
  <pubDate>Mon, 02 Mar 2026 11:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func TestFromFeedParsesAndDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	items, err := discovery.New().FromFeed(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FromFeed failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 deduplicated items, got %d", len(items))
	}
	// Newest first.
	if items[0].Title != "43rd plenary meeting" {
		t.Fatalf("expected newest first, got %q", items[0].Title)
	}
	if items[0].Published.IsZero() {
		t.Fatal("expected published timestamp")
	}
}

func TestFromIndexFiltersLinks(t *testing.T) {
	page := `<!DOCTYPE html><html><body>
<a href="/en/asset/k1">Meeting one</a>
<a href="/en/asset/k2">Meeting two</a>
<a href="/en/asset/k1?utm_source=banner">Meeting one again</a>
<a href="/en/schedule">Schedule</a>
<a href="https://elsewhere.example.com/en/asset/k9">External</a>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	items, err := discovery.New().FromIndex(context.Background(), server.URL, "/asset/")
	if err != nil {
		t.Fatalf("FromIndex failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Title != "Meeting one" || items[1].Title != "Meeting two" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestFromIndexRejectsInvalidURL(t *testing.T) {
	if _, err := discovery.New().FromIndex(context.Background(), "not a url", ""); err == nil {
		t.Fatal("expected error for invalid index URL")
	}
}
