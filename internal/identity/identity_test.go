package identity_test

import (
	"strings"
	"testing"

	"plenary/internal/identity"
)

func TestResolveDeterministic(t *testing.T) {
	const u = "https://webtv.example.org/en/asset/k1x/k1xabc123"
	first, err := identity.Resolve(u)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := identity.Resolve(u)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if again != first {
			t.Fatalf("expected stable identifier, got %s then %s", first, again)
		}
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(first), first)
	}
}

func TestResolveCollapsesEquivalentSpellings(t *testing.T) {
	base, err := identity.Resolve("https://webtv.example.org/en/asset/k1x/k1xabc123")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	variants := []string{
		"HTTPS://WEBTV.EXAMPLE.ORG/en/asset/k1x/k1xabc123",
		"https://webtv.example.org:443/en/asset/k1x/k1xabc123",
		"https://webtv.example.org/en/asset/k1x/k1xabc123/",
		"https://webtv.example.org/en/asset/k1x/k1xabc123?utm_source=mail",
		"  https://webtv.example.org/en/asset/k1x/k1xabc123  ",
		"https://webtv.example.org/en/asset/k1x/k1xabc123#t=120",
	}
	for _, variant := range variants {
		id, err := identity.Resolve(variant)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", variant, err)
		}
		if id != base {
			t.Errorf("Resolve(%q) = %s, want %s", variant, id, base)
		}
	}
}

func TestResolveDistinguishesSessions(t *testing.T) {
	a, err := identity.Resolve("https://webtv.example.org/en/asset/k1x/aaa")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := identity.Resolve("https://webtv.example.org/en/asset/k1x/bbb")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a == b {
		t.Fatal("different URLs must not share an identifier")
	}
}

func TestResolveKeepsMeaningfulQuery(t *testing.T) {
	plain, err := identity.Resolve("https://webtv.example.org/watch")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	withQuery, err := identity.Resolve("https://webtv.example.org/watch?entry=k1xabc")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if plain == withQuery {
		t.Fatal("meaningful query parameters must affect the identifier")
	}

	reordered, err := identity.Resolve("https://webtv.example.org/watch?b=2&a=1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	ordered, err := identity.Resolve("https://webtv.example.org/watch?a=1&b=2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if reordered != ordered {
		t.Fatal("query parameter order must not affect the identifier")
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	for _, bad := range []string{"", "   ", "ftp://example.org/file", "not a url", "/relative/path"} {
		if _, err := identity.Resolve(bad); err == nil {
			t.Errorf("Resolve(%q): expected error", bad)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	got, err := identity.Canonicalize("HTTPS://WebTV.Example.org:443/en/asset/?utm_campaign=x&entry=k1")
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if strings.Contains(got, "utm_campaign") {
		t.Fatalf("tracking params must be stripped, got %s", got)
	}
	if got != "https://webtv.example.org/en/asset?entry=k1" {
		t.Fatalf("unexpected canonical form %s", got)
	}
}
