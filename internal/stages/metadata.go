package stages

import (
	"context"
	"encoding/json"
	"log/slog"

	"plenary/internal/language"
	"plenary/internal/logging"
	"plenary/internal/services"
	"plenary/internal/services/webtv"
	"plenary/internal/stage"
)

// MetadataFetcher is the collaborator contract for the metadata stage.
type MetadataFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*webtv.SessionMetadata, error)
}

// MetadataFetch resolves the session page into stored metadata. It is the
// only stage that touches the source URL directly.
type MetadataFetch struct {
	client MetadataFetcher
	logger *slog.Logger
}

// NewMetadataFetch constructs the stage.
func NewMetadataFetch(client MetadataFetcher) *MetadataFetch {
	return &MetadataFetch{client: client, logger: logging.NewNop()}
}

func (s *MetadataFetch) Name() string { return StageMetadata }

// SetLogger satisfies stage.LoggerAware.
func (s *MetadataFetch) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *MetadataFetch) Execute(ctx context.Context, run *stage.Run) error {
	report(run, StageMetadata, 0, "fetching session page")

	metadata, err := s.client.Fetch(ctx, run.Record.SourceURL)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageMetadata, "encode metadata",
			"marshal session metadata", err)
	}

	run.Record.Title = metadata.Title
	run.Record.MetadataJSON = string(encoded)
	if code := language.Normalize(metadata.Language); code != "" {
		run.Record.Language = code
	}

	logging.WithContext(ctx, s.logger).Info("session metadata resolved",
		logging.String("title", metadata.Title),
		logging.String("entry_id", metadata.EntryID),
		logging.String("language", run.Record.Language),
	)
	report(run, StageMetadata, 1, "metadata stored")
	return nil
}

func (s *MetadataFetch) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(StageMetadata, "metadata client not configured")
	}
	return stage.Healthy(StageMetadata)
}
