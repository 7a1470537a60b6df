package main

import "testing"

func TestResolveSessionArg(t *testing.T) {
	id, err := resolveSessionArg("  abc123  ")
	if err != nil {
		t.Fatalf("plain id: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected trimmed id, got %q", id)
	}

	first, err := resolveSessionArg("https://webtv.example.org/en/asset?entry=k1")
	if err != nil {
		t.Fatalf("url form: %v", err)
	}
	second, err := resolveSessionArg("HTTPS://WEBTV.example.org:443/en/asset?entry=k1&utm_source=mail")
	if err != nil {
		t.Fatalf("equivalent url form: %v", err)
	}
	if first != second {
		t.Fatalf("equivalent URLs resolved to different sessions: %s vs %s", first, second)
	}

	if _, err := resolveSessionArg("   "); err == nil {
		t.Fatal("expected error for empty argument")
	}

	if _, err := resolveSessionArg("not a url ://"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("a very long session title", 10); got != "a very ..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
