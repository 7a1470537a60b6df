package stage

import (
	"context"
	"log/slog"

	"plenary/internal/progress"
	"plenary/internal/records"
)

// Run carries the working state of one pipeline run between stages. The
// record holds everything that survives the run; the remaining fields are
// scratch state that dies with it.
type Run struct {
	Record     *records.Record
	Tracker    *progress.Tracker
	ScratchDir string

	// AudioPath is set by the acquisition stage and consumed by
	// transcription. It always points inside ScratchDir.
	AudioPath string

	// Vectors are produced by the embedding stage and consumed by
	// persistence.
	Vectors []Vector

	// VectorsStored is set by persistence after the vector upsert so
	// compensation knows this run owns rows to delete. It lives on the run,
	// not the handler: handlers are shared across concurrent runs.
	VectorsStored bool
}

// Vector pairs one transcript segment with its embedding.
type Vector struct {
	Index  int
	Text   string
	Values []float32
}

// Handler is the contract every pipeline stage implements.
type Handler interface {
	Name() string
	Execute(context.Context, *Run) error
	HealthCheck(context.Context) Health
}

// Cleaner is implemented by stages that leave side effects which must be
// compensated when a later stage fails. Cleanup runs in reverse stage order.
type Cleaner interface {
	Cleanup(context.Context, *Run) error
}

// LoggerAware lets the orchestrator hand a stage its base logger once, at
// assembly time. Handlers run concurrently for different sessions, so the
// logger must never be swapped per run; stages derive per-run context with
// logging.WithContext instead.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
