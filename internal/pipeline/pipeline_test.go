package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"plenary/internal/config"
	"plenary/internal/pipeline"
	"plenary/internal/records"
	"plenary/internal/services"
	"plenary/internal/services/media"
	"plenary/internal/services/openai"
	"plenary/internal/services/webtv"
	"plenary/internal/testsupport"
	"plenary/internal/vector"
)

type fakeCollaborators struct {
	mu sync.Mutex

	metadataCalls   int
	acquireCalls    int
	transcribeCalls int
	extractCalls    int
	summaryCalls    int
	embedCalls      int

	released []string
	upserts  []vector.Embedding
	deleted  []string

	metadataErr    error
	transcribeErrs []error
	extractErr     error

	transcribeEntered chan struct{}
	transcribeRelease chan struct{}
}

func (f *fakeCollaborators) Fetch(context.Context, string) (*webtv.SessionMetadata, error) {
	f.mu.Lock()
	f.metadataCalls++
	err := f.metadataErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &webtv.SessionMetadata{Title: "General Debate", Language: "en"}, nil
}

func (f *fakeCollaborators) Acquire(_ context.Context, _, destDir string) (*media.Audio, error) {
	f.mu.Lock()
	f.acquireCalls++
	f.mu.Unlock()
	path := filepath.Join(destDir, "audio.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return nil, err
	}
	return &media.Audio{Path: path, Format: "m4a", DurationSeconds: 90, SizeBytes: 5}, nil
}

func (f *fakeCollaborators) Release(path string) error {
	f.mu.Lock()
	f.released = append(f.released, path)
	f.mu.Unlock()
	return os.RemoveAll(path)
}

func (f *fakeCollaborators) Available() error { return nil }

func (f *fakeCollaborators) Transcribe(ctx context.Context, _ string) (*openai.Transcript, error) {
	f.mu.Lock()
	f.transcribeCalls++
	call := f.transcribeCalls
	var err error
	if call <= len(f.transcribeErrs) {
		err = f.transcribeErrs[call-1]
	}
	entered := f.transcribeEntered
	release := f.transcribeRelease
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &openai.Transcript{
		Text:     "The session is called to order. Delegates debated climate finance.",
		Language: "en",
		Duration: 90,
		Segments: []openai.Segment{
			{Index: 0, Start: 0, End: 45, Text: "The session is called to order."},
			{Index: 1, Start: 45, End: 90, Text: "Delegates debated climate finance."},
		},
	}, nil
}

func (f *fakeCollaborators) ExtractEntities(context.Context, string) (*openai.Entities, error) {
	f.mu.Lock()
	f.extractCalls++
	err := f.extractErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &openai.Entities{
		Speakers: []openai.Speaker{{Name: "Amb. Rivera", Country: "Chile"}},
		Topics:   []string{"climate finance"},
	}, nil
}

func (f *fakeCollaborators) Summarize(context.Context, string, string) (string, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	return "A neutral summary.", nil
}

func (f *fakeCollaborators) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

func (f *fakeCollaborators) UpsertBatch(_ context.Context, embeddings []vector.Embedding) error {
	f.mu.Lock()
	f.upserts = append(f.upserts, embeddings...)
	f.mu.Unlock()
	return nil
}

func (f *fakeCollaborators) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, sessionID)
	f.mu.Unlock()
	return nil
}

type harness struct {
	orchestrator *pipeline.Orchestrator
	store        *records.Store
	cfg          *config.Config
	fakes        *fakeCollaborators
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithRetry(3, 0, 0)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	fakes := &fakeCollaborators{}

	orchestrator, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Store:      store,
		Metadata:   fakes,
		Audio:      fakes,
		Transcribe: fakes,
		Extract:    fakes,
		Summarize:  fakes,
		Embed:      fakes,
		Vectors:    fakes,
	})
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	return &harness{orchestrator: orchestrator, store: store, cfg: cfg, fakes: fakes}
}

const sessionURL = "https://webtv.example.org/en/asset?entry=k1"

func TestProcessCompletesSession(t *testing.T) {
	h := newHarness(t)

	record, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if record.Status != records.StatusCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}
	if record.Title != "General Debate" {
		t.Fatalf("unexpected title: %q", record.Title)
	}
	if record.Summary == "" || record.EntitiesJSON == "" || record.TranscriptJSON == "" {
		t.Fatalf("expected populated artifacts: %+v", record)
	}
	if record.EmbeddingRef == "" {
		t.Fatal("expected embedding reference")
	}

	stored, err := h.store.Get(context.Background(), record.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ProgressPercent != 100 || stored.ProgressStage != "completed" {
		t.Fatalf("unexpected final progress: %+v", stored)
	}

	// Normal completion removes the scratch area.
	scratch := filepath.Join(h.cfg.Paths.ScratchDir, record.SessionID)
	if _, err := os.Stat(scratch); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected scratch dir removed, stat err=%v", err)
	}
	if len(h.fakes.upserts) == 0 {
		t.Fatal("expected vectors written")
	}
	if len(h.fakes.deleted) != 0 {
		t.Fatalf("no compensation expected on success, got %v", h.fakes.deleted)
	}
}

func TestProcessReturnsCachedRecordForDuplicate(t *testing.T) {
	h := newHarness(t)

	first, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	// An equivalent URL spelling resolves to the same session.
	second, err := h.orchestrator.Process(context.Background(),
		"HTTPS://WEBTV.example.org:443/en/asset/?entry=k1&utm_source=mail")
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected same session, got %s vs %s", second.SessionID, first.SessionID)
	}
	if h.fakes.metadataCalls != 1 {
		t.Fatalf("expected no second pipeline run, metadata calls = %d", h.fakes.metadataCalls)
	}
}

func TestProcessConcurrentDuplicateConflicts(t *testing.T) {
	h := newHarness(t)
	h.fakes.transcribeEntered = make(chan struct{}, 1)
	h.fakes.transcribeRelease = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.orchestrator.Process(context.Background(), sessionURL)
		firstDone <- err
	}()

	select {
	case <-h.fakes.transcribeEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached transcription")
	}

	_, err := h.orchestrator.Process(context.Background(), sessionURL)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	close(h.fakes.transcribeRelease)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestProcessRetriesTransientStageFailure(t *testing.T) {
	h := newHarness(t)
	h.fakes.transcribeErrs = []error{
		services.Retryable("openai", "transcribe", "upstream 503", errors.New("503")),
		services.Retryable("openai", "transcribe", "upstream 503", errors.New("503")),
	}

	record, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if record.Status != records.StatusCompleted {
		t.Fatalf("expected completed after retries, got %s", record.Status)
	}
	if h.fakes.transcribeCalls != 3 {
		t.Fatalf("expected 3 transcription attempts, got %d", h.fakes.transcribeCalls)
	}
}

func TestProcessTerminalFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.fakes.extractErr = services.Wrap(services.ErrValidation, "openai", "extract entities",
		"model refused", nil)

	record, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("expected failure via record status, got error %v", err)
	}
	if record.Status != records.StatusFailed {
		t.Fatalf("expected failed record, got %s", record.Status)
	}
	if record.ErrorCause != "validation" {
		t.Fatalf("unexpected returned cause: %q", record.ErrorCause)
	}
	if h.fakes.extractCalls != 1 {
		t.Fatalf("terminal error must not retry, got %d calls", h.fakes.extractCalls)
	}
	if len(h.fakes.released) != 1 {
		t.Fatalf("expected audio released during compensation, got %v", h.fakes.released)
	}

	failedList, err := h.store.List(context.Background(), records.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failedList) != 1 {
		t.Fatalf("expected one failed record, got %d", len(failedList))
	}
	failed := failedList[0]
	if failed.ErrorCause != "validation" {
		t.Fatalf("unexpected error cause: %q", failed.ErrorCause)
	}
	scratch := filepath.Join(h.cfg.Paths.ScratchDir, failed.SessionID)
	if _, err := os.Stat(scratch); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected scratch dir removed after failure, stat err=%v", err)
	}
}

func TestProcessFailedSessionCanBeRetried(t *testing.T) {
	h := newHarness(t)
	h.fakes.metadataErr = services.Wrap(services.ErrValidation, "webtv", "fetch metadata",
		"page carries no session title", nil)

	first, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("Process returned error instead of failed record: %v", err)
	}
	if first.Status != records.StatusFailed {
		t.Fatalf("expected first run to fail, got %s", first.Status)
	}

	h.fakes.mu.Lock()
	h.fakes.metadataErr = nil
	h.fakes.mu.Unlock()

	record, err := h.orchestrator.Process(context.Background(), sessionURL)
	if err != nil {
		t.Fatalf("retry Process failed: %v", err)
	}
	if record.Status != records.StatusCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}
	if record.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", record.Attempt)
	}
}

func TestProcessCancellationFailsRecordAndCleansUp(t *testing.T) {
	h := newHarness(t)
	h.fakes.transcribeEntered = make(chan struct{}, 1)
	h.fakes.transcribeRelease = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		record *records.Record
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		record, err := h.orchestrator.Process(ctx, sessionURL)
		done <- outcome{record: record, err: err}
	}()

	select {
	case <-h.fakes.transcribeEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached transcription")
	}
	cancel()

	result := <-done
	if result.err != nil {
		t.Fatalf("expected failure via record status, got error %v", result.err)
	}
	if result.record.Status != records.StatusFailed || result.record.ErrorCause != "cancelled" {
		t.Fatalf("expected cancelled record, got %+v", result.record)
	}

	failed, listErr := h.store.List(context.Background(), records.StatusFailed)
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(failed) != 1 || failed[0].ErrorCause != "cancelled" {
		t.Fatalf("expected cancelled record, got %+v", failed)
	}
	if len(h.fakes.released) != 1 {
		t.Fatalf("expected audio released after cancellation, got %v", h.fakes.released)
	}
}

func TestProcessRejectsInvalidURL(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.Process(context.Background(), "ftp://example.org/session")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	all, listErr := h.store.List(context.Background())
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(all) != 0 {
		t.Fatalf("invalid URL must not create records, got %d", len(all))
	}
}

func TestHealthReportsEveryStage(t *testing.T) {
	h := newHarness(t)

	health := h.orchestrator.Health(context.Background())
	if len(health) != 7 {
		t.Fatalf("expected 7 stage reports, got %d", len(health))
	}
	for _, entry := range health {
		if !entry.Ready {
			t.Fatalf("expected ready stage, got %+v", entry)
		}
	}
}
