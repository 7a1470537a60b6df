// Package identity derives deterministic session identifiers from media
// session URLs. The identifier is the dedup key for the processing pipeline.
package identity
