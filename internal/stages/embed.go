package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"plenary/internal/logging"
	"plenary/internal/services"
	"plenary/internal/services/openai"
	"plenary/internal/stage"
)

// Embedder is the collaborator contract for the embedding stage.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// passageMaxBytes bounds how much transcript text is coalesced into one
// embedding input. Short adjacent segments are merged so a long session does
// not produce thousands of near-empty vectors.
const passageMaxBytes = 1000

// EmbeddingGeneration turns transcript passages into vectors held on the run
// for the persistence stage.
type EmbeddingGeneration struct {
	client    Embedder
	batchSize int
	logger    *slog.Logger
}

// NewEmbeddingGeneration constructs the stage.
func NewEmbeddingGeneration(client Embedder, batchSize int) *EmbeddingGeneration {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EmbeddingGeneration{client: client, batchSize: batchSize, logger: logging.NewNop()}
}

func (s *EmbeddingGeneration) Name() string { return StageEmbed }

// SetLogger satisfies stage.LoggerAware.
func (s *EmbeddingGeneration) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *EmbeddingGeneration) Execute(ctx context.Context, run *stage.Run) error {
	transcript, err := decodeTranscript(run.Record)
	if err != nil {
		return err
	}
	passages := buildPassages(transcript.Segments, passageMaxBytes)
	if len(passages) == 0 {
		return services.Wrap(services.ErrValidation, StageEmbed, "execute",
			"transcript has no embeddable content", nil)
	}
	report(run, StageEmbed, 0,
		fmt.Sprintf("embedding %d passages", len(passages)))

	run.Vectors = run.Vectors[:0]
	for start := 0; start < len(passages); start += s.batchSize {
		end := start + s.batchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]
		texts := make([]string, len(batch))
		for i, passage := range batch {
			texts[i] = passage.text
		}

		vectors, err := s.client.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, values := range vectors {
			run.Vectors = append(run.Vectors, stage.Vector{
				Index:  batch[i].index,
				Text:   batch[i].text,
				Values: values,
			})
		}
		report(run, StageEmbed, float64(end)/float64(len(passages)),
			fmt.Sprintf("embedded %d of %d passages", end, len(passages)))
	}

	logging.WithContext(ctx, s.logger).Info("embeddings generated",
		logging.Int("vectors", len(run.Vectors)))
	return nil
}

func (s *EmbeddingGeneration) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(StageEmbed, "embedding client not configured")
	}
	return stage.Healthy(StageEmbed)
}

type passage struct {
	index int
	text  string
}

// buildPassages coalesces adjacent transcript segments into passages of at
// most maxLen bytes. Each passage keeps the index of its first segment so
// vectors stay addressable back to the transcript.
func buildPassages(segments []openai.Segment, maxLen int) []passage {
	var passages []passage
	var builder strings.Builder
	startIndex := 0

	flush := func() {
		text := strings.TrimSpace(builder.String())
		if text != "" {
			passages = append(passages, passage{index: startIndex, text: text})
		}
		builder.Reset()
	}

	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if builder.Len() == 0 {
			startIndex = segment.Index
		} else if builder.Len()+len(text)+1 > maxLen {
			flush()
			startIndex = segment.Index
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(text)
	}
	flush()
	return passages
}
