package stages

import (
	"context"
	"log/slog"

	"plenary/internal/logging"
	"plenary/internal/stage"
)

// Summarizer is the collaborator contract for the summary stage.
type Summarizer interface {
	Summarize(ctx context.Context, title, transcriptText string) (string, error)
}

// Summarization produces the archival summary stored on the record.
type Summarization struct {
	client Summarizer
	logger *slog.Logger
}

// NewSummarization constructs the stage.
func NewSummarization(client Summarizer) *Summarization {
	return &Summarization{client: client, logger: logging.NewNop()}
}

func (s *Summarization) Name() string { return StageSummarize }

// SetLogger satisfies stage.LoggerAware.
func (s *Summarization) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Summarization) Execute(ctx context.Context, run *stage.Run) error {
	transcript, err := decodeTranscript(run.Record)
	if err != nil {
		return err
	}
	report(run, StageSummarize, 0, "summarizing session")

	summary, err := s.client.Summarize(ctx, run.Record.Title,
		capRunes(transcript.Text, maxModelInputRunes))
	if err != nil {
		return err
	}
	run.Record.Summary = summary

	logging.WithContext(ctx, s.logger).Info("summary produced",
		logging.Int("length", len(summary)))
	report(run, StageSummarize, 1, "summary stored")
	return nil
}

func (s *Summarization) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(StageSummarize, "summary client not configured")
	}
	return stage.Healthy(StageSummarize)
}
