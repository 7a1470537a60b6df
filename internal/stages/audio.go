package stages

import (
	"context"
	"fmt"
	"log/slog"

	"plenary/internal/logging"
	"plenary/internal/services/media"
	"plenary/internal/stage"
)

// AudioAcquirer is the collaborator contract for the acquisition stage.
type AudioAcquirer interface {
	Acquire(ctx context.Context, sourceURL, destDir string) (*media.Audio, error)
	Release(path string) error
	Available() error
}

// AudioAcquisition downloads the session audio into the run's scratch
// directory. Its cleanup deletes the artifact so a failed run leaks nothing.
type AudioAcquisition struct {
	service AudioAcquirer
	logger  *slog.Logger
}

// NewAudioAcquisition constructs the stage.
func NewAudioAcquisition(service AudioAcquirer) *AudioAcquisition {
	return &AudioAcquisition{service: service, logger: logging.NewNop()}
}

func (s *AudioAcquisition) Name() string { return StageAudio }

// SetLogger satisfies stage.LoggerAware.
func (s *AudioAcquisition) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *AudioAcquisition) Execute(ctx context.Context, run *stage.Run) error {
	report(run, StageAudio, 0, "downloading session audio")

	audio, err := s.service.Acquire(ctx, run.Record.SourceURL, run.ScratchDir)
	if err != nil {
		return err
	}
	run.AudioPath = audio.Path

	logging.WithContext(ctx, s.logger).Info("session audio acquired",
		logging.String("path", audio.Path),
		logging.Float64("duration_seconds", audio.DurationSeconds),
		logging.Int64("size_bytes", audio.SizeBytes),
	)
	report(run, StageAudio, 1,
		fmt.Sprintf("audio acquired (%.0fs)", audio.DurationSeconds))
	return nil
}

// Cleanup removes the downloaded artifact.
func (s *AudioAcquisition) Cleanup(_ context.Context, run *stage.Run) error {
	if run.AudioPath == "" {
		return nil
	}
	err := s.service.Release(run.AudioPath)
	if err == nil {
		run.AudioPath = ""
	}
	return err
}

func (s *AudioAcquisition) HealthCheck(context.Context) stage.Health {
	if s.service == nil {
		return stage.Unhealthy(StageAudio, "media service not configured")
	}
	if err := s.service.Available(); err != nil {
		return stage.Unhealthy(StageAudio, err.Error())
	}
	return stage.Healthy(StageAudio)
}
