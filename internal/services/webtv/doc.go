// Package webtv fetches session pages and extracts the metadata the
// pipeline records before acquiring any media.
package webtv
