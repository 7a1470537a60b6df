package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"plenary/internal/language"
	"plenary/internal/logging"
	"plenary/internal/services"
	"plenary/internal/services/openai"
	"plenary/internal/stage"
)

// Transcriber is the collaborator contract for the transcription stage.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*openai.Transcript, error)
}

// Transcription turns the acquired audio into a timed transcript on the
// record.
type Transcription struct {
	client Transcriber
	logger *slog.Logger
}

// NewTranscription constructs the stage.
func NewTranscription(client Transcriber) *Transcription {
	return &Transcription{client: client, logger: logging.NewNop()}
}

func (s *Transcription) Name() string { return StageTranscribe }

// SetLogger satisfies stage.LoggerAware.
func (s *Transcription) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Transcription) Execute(ctx context.Context, run *stage.Run) error {
	if run.AudioPath == "" {
		return services.Wrap(services.ErrValidation, StageTranscribe, "execute",
			"no audio artifact available", nil)
	}
	report(run, StageTranscribe, 0, "transcribing session audio")

	transcript, err := s.client.Transcribe(ctx, run.AudioPath)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(transcript)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageTranscribe, "encode transcript",
			"marshal transcript", err)
	}

	run.Record.TranscriptJSON = string(encoded)
	run.Record.SegmentCount = len(transcript.Segments)
	run.Record.WordCount = transcript.WordCount()
	if code := language.Normalize(transcript.Language); code != "" {
		run.Record.Language = code
	}

	logging.WithContext(ctx, s.logger).Info("transcription complete",
		logging.Int("segments", run.Record.SegmentCount),
		logging.Int("words", run.Record.WordCount),
		logging.String("language", run.Record.Language),
	)
	report(run, StageTranscribe, 1,
		fmt.Sprintf("transcribed %d segments", run.Record.SegmentCount))
	return nil
}

func (s *Transcription) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(StageTranscribe, "transcription client not configured")
	}
	return stage.Healthy(StageTranscribe)
}
