// Package discovery finds candidate session URLs from syndication feeds
// and listing pages so batches can be assembled without hand-curated lists.
package discovery
