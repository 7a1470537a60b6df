// Package pipeline is the orchestrator that drives a session URL through
// the seven processing stages. It owns the deduplication gate, the run
// budget, progress fan-out, and compensating cleanup when a run fails.
package pipeline
