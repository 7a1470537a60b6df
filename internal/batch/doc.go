// Package batch drives many session URLs through the pipeline under a
// bounded worker pool, serialized across processes by a file lock.
package batch
