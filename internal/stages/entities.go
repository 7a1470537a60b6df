package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"plenary/internal/logging"
	"plenary/internal/services"
	"plenary/internal/services/openai"
	"plenary/internal/stage"
)

// EntityExtractor is the collaborator contract for the extraction stage.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, transcriptText string) (*openai.Entities, error)
}

// EntityExtraction pulls speakers, organizations, topics, and document
// references out of the transcript.
type EntityExtraction struct {
	client EntityExtractor
	logger *slog.Logger
}

// NewEntityExtraction constructs the stage.
func NewEntityExtraction(client EntityExtractor) *EntityExtraction {
	return &EntityExtraction{client: client, logger: logging.NewNop()}
}

func (s *EntityExtraction) Name() string { return StageEntities }

// SetLogger satisfies stage.LoggerAware.
func (s *EntityExtraction) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *EntityExtraction) Execute(ctx context.Context, run *stage.Run) error {
	transcript, err := decodeTranscript(run.Record)
	if err != nil {
		return err
	}
	report(run, StageEntities, 0, "extracting entities")

	entities, err := s.client.ExtractEntities(ctx, capRunes(transcript.Text, maxModelInputRunes))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(entities)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageEntities, "encode entities",
			"marshal entities", err)
	}
	run.Record.EntitiesJSON = string(encoded)

	logging.WithContext(ctx, s.logger).Info("entities extracted",
		logging.Int("speakers", len(entities.Speakers)),
		logging.Int("topics", len(entities.Topics)),
		logging.Int("documents", len(entities.Documents)),
	)
	report(run, StageEntities, 1,
		fmt.Sprintf("extracted %d speakers, %d topics", len(entities.Speakers), len(entities.Topics)))
	return nil
}

func (s *EntityExtraction) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(StageEntities, "extraction client not configured")
	}
	return stage.Healthy(StageEntities)
}
