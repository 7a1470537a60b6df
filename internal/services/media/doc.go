// Package media wraps the external downloader and probe binaries that
// acquire session audio into the scratch area.
package media
