package stages

import (
	"context"
	"fmt"
	"log/slog"

	"plenary/internal/logging"
	"plenary/internal/records"
	"plenary/internal/services"
	"plenary/internal/stage"
	"plenary/internal/vector"
)

// VectorWriter is the embedding-store contract for the persistence stage.
type VectorWriter interface {
	UpsertBatch(ctx context.Context, embeddings []vector.Embedding) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Persistence writes the embeddings to the vector store (when configured)
// and then transitions the processing record to completed. Its cleanup
// removes any vectors written for the session so a failed run leaves no
// orphaned rows.
type Persistence struct {
	store   *records.Store
	vectors VectorWriter
	table   string
	logger  *slog.Logger
}

// NewPersistence constructs the stage. vectors may be nil when the vector
// store is disabled.
func NewPersistence(store *records.Store, vectors VectorWriter, table string) *Persistence {
	return &Persistence{store: store, vectors: vectors, table: table, logger: logging.NewNop()}
}

func (s *Persistence) Name() string { return StagePersist }

// SetLogger satisfies stage.LoggerAware.
func (s *Persistence) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Persistence) Execute(ctx context.Context, run *stage.Run) error {
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, StagePersist, "execute",
			"record store not configured", nil)
	}
	report(run, StagePersist, 0, "persisting record")

	if s.vectors != nil && len(run.Vectors) > 0 {
		embeddings := make([]vector.Embedding, len(run.Vectors))
		for i, v := range run.Vectors {
			embeddings[i] = vector.Embedding{
				SessionID:    run.Record.SessionID,
				SegmentIndex: v.Index,
				Text:         v.Text,
				Values:       v.Values,
			}
		}
		if err := s.vectors.UpsertBatch(ctx, embeddings); err != nil {
			return err
		}
		run.VectorsStored = true
		run.Record.EmbeddingRef = fmt.Sprintf("pgvector:%s/%s", s.table, run.Record.SessionID)
		report(run, StagePersist, 0.5,
			fmt.Sprintf("stored %d vectors", len(embeddings)))
	}

	// Report full progress before the completion write so the record's
	// final stored state keeps the completed label.
	report(run, StagePersist, 1, "record stored")

	run.Record.ProgressMessage = "completed"
	if err := s.store.Complete(ctx, run.Record); err != nil {
		return services.Wrap(services.ErrPersistence, StagePersist, "complete record",
			"finalize processing record", err)
	}

	logging.WithContext(ctx, s.logger).Info("record completed",
		logging.Int("vectors", len(run.Vectors)),
		logging.String("embedding_ref", run.Record.EmbeddingRef),
	)
	return nil
}

// Cleanup removes the session's vectors when this run wrote them.
func (s *Persistence) Cleanup(ctx context.Context, run *stage.Run) error {
	if !run.VectorsStored || s.vectors == nil {
		return nil
	}
	if err := s.vectors.DeleteSession(ctx, run.Record.SessionID); err != nil {
		return err
	}
	run.VectorsStored = false
	run.Record.EmbeddingRef = ""
	return nil
}

func (s *Persistence) HealthCheck(ctx context.Context) stage.Health {
	if s.store == nil {
		return stage.Unhealthy(StagePersist, "record store not configured")
	}
	if _, err := s.store.Health(ctx); err != nil {
		return stage.Unhealthy(StagePersist, err.Error())
	}
	return stage.Healthy(StagePersist)
}
