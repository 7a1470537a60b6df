// Package progress aggregates per-stage completion reports into a single
// monotone percentage for a pipeline run and fans snapshots out to
// subscribed observers.
package progress
