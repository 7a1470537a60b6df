package stages

import (
	"encoding/json"
	"strings"

	"plenary/internal/progress"
	"plenary/internal/records"
	"plenary/internal/services"
	"plenary/internal/services/openai"
	"plenary/internal/stage"
)

// Stage names double as the progress stage labels stored on the record.
const (
	StageMetadata   = "fetching_metadata"
	StageAudio      = "acquiring_audio"
	StageTranscribe = "transcribing"
	StageEntities   = "extracting_entities"
	StageSummarize  = "summarizing"
	StageEmbed      = "embedding"
	StagePersist    = "persisting"
)

// Weights distributes the overall percentage across the stages in execution
// order. Transcription dominates because it dominates wall-clock time.
func Weights() []progress.StageWeight {
	return []progress.StageWeight{
		{Name: StageMetadata, Weight: 10},
		{Name: StageAudio, Weight: 15},
		{Name: StageTranscribe, Weight: 30},
		{Name: StageEntities, Weight: 15},
		{Name: StageSummarize, Weight: 10},
		{Name: StageEmbed, Weight: 10},
		{Name: StagePersist, Weight: 10},
	}
}

// maxModelInputRunes caps the transcript text sent to chat deployments so a
// very long session cannot blow the model's context window.
const maxModelInputRunes = 48000

func report(run *stage.Run, name string, fraction float64, message string) {
	if run == nil || run.Tracker == nil {
		return
	}
	// Unknown stage names cannot happen for the fixed descriptor set.
	_ = run.Tracker.Update(name, fraction, message)
}

func decodeTranscript(record *records.Record) (*openai.Transcript, error) {
	if strings.TrimSpace(record.TranscriptJSON) == "" {
		return nil, services.Wrap(services.ErrValidation, "stages", "decode transcript",
			"record carries no transcript", nil)
	}
	var transcript openai.Transcript
	if err := json.Unmarshal([]byte(record.TranscriptJSON), &transcript); err != nil {
		return nil, services.Wrap(services.ErrValidation, "stages", "decode transcript",
			"transcript payload is malformed", err)
	}
	return &transcript, nil
}

func capRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit]))
}
