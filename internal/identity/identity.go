package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var errEmptyURL = errors.New("session url is empty")

// Tracking query parameters that never affect which session a URL addresses.
var strippedParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
}

// Resolve derives the stable session identifier for a media session URL.
// The same URL always yields the same identifier: the URL is canonicalized
// (scheme and host lowercased, default ports and tracking parameters
// stripped, trailing slash trimmed) and hashed with SHA-256.
func Resolve(rawURL string) (string, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:16]), nil
}

// Canonicalize normalizes a session URL so that trivially different spellings
// of the same address collapse to one representation.
func Canonicalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errEmptyURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse session url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("session url %q: unsupported scheme %q", trimmed, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("session url %q: missing host", trimmed)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed.Host, parsed.Scheme)
	parsed.Fragment = ""
	parsed.RawQuery = normalizeQuery(parsed.Query())
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String(), nil
}

func normalizeHost(host, scheme string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, skip := strippedParams[strings.ToLower(key)]; skip {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	rebuilt := url.Values{}
	for _, key := range keys {
		for _, value := range values[key] {
			rebuilt.Add(key, value)
		}
	}
	return rebuilt.Encode()
}
