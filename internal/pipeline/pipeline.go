package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plenary/internal/bus"
	"plenary/internal/config"
	"plenary/internal/identity"
	"plenary/internal/logging"
	"plenary/internal/progress"
	"plenary/internal/records"
	"plenary/internal/services"
	"plenary/internal/stage"
	"plenary/internal/stages"
)

const cleanupTimeout = 30 * time.Second

// Options carries the orchestrator's collaborators. Store, Config, and the
// stage collaborators are required; Logger and Publisher default to no-ops.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *records.Store
	Publisher bus.Publisher

	Metadata   stages.MetadataFetcher
	Audio      stages.AudioAcquirer
	Transcribe stages.Transcriber
	Extract    stages.EntityExtractor
	Summarize  stages.Summarizer
	Embed      stages.Embedder
	Vectors    stages.VectorWriter
}

type descriptor struct {
	handler stage.Handler
	policy  stage.Policy
}

// Orchestrator drives a session URL through the full stage sequence. It is
// the only component that touches more than one stage; stages never call
// each other.
type Orchestrator struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *records.Store
	publisher   bus.Publisher
	descriptors []descriptor
	slots       chan struct{}
}

// New validates the options and assembles the stage sequence.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: configuration is required")
	}
	if opts.Store == nil {
		return nil, errors.New("pipeline: record store is required")
	}
	for name, missing := range map[string]bool{
		"metadata client":     opts.Metadata == nil,
		"media service":       opts.Audio == nil,
		"transcription model": opts.Transcribe == nil,
		"extraction model":    opts.Extract == nil,
		"summary model":       opts.Summarize == nil,
		"embedding model":     opts.Embed == nil,
	} {
		if missing {
			return nil, fmt.Errorf("pipeline: %s is required", name)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = bus.NewNoop()
	}

	p := opts.Config.Pipeline
	retry := func(timeoutSeconds int) stage.Policy {
		return stage.Policy{
			Attempts: p.RetryAttempts,
			Base:     time.Duration(p.RetryBaseSeconds) * time.Second,
			Max:      time.Duration(p.RetryMaxSeconds) * time.Second,
			Timeout:  time.Duration(timeoutSeconds) * time.Second,
		}
	}
	descriptors := []descriptor{
		{stages.NewMetadataFetch(opts.Metadata), retry(p.MetadataTimeout)},
		{stages.NewAudioAcquisition(opts.Audio), retry(p.AudioTimeout)},
		{stages.NewTranscription(opts.Transcribe), retry(p.TranscribeTimeout)},
		{stages.NewEntityExtraction(opts.Extract), retry(p.EntitiesTimeout)},
		{stages.NewSummarization(opts.Summarize), retry(p.SummaryTimeout)},
		{stages.NewEmbeddingGeneration(opts.Embed, opts.Config.OpenAI.EmbeddingBatchSize), retry(p.EmbedTimeout)},
		{stages.NewPersistence(opts.Store, opts.Vectors, opts.Config.Vector.Table), retry(p.PersistTimeout)},
	}
	// Handlers are shared across concurrent runs, so the logger is handed
	// over exactly once here; per-run fields come from the context.
	componentLogger := logging.NewComponentLogger(logger, "pipeline")
	for _, desc := range descriptors {
		if aware, ok := desc.handler.(stage.LoggerAware); ok {
			aware.SetLogger(componentLogger)
		}
	}

	slots := p.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	return &Orchestrator{
		cfg:         opts.Config,
		logger:      componentLogger,
		store:       opts.Store,
		publisher:   publisher,
		descriptors: descriptors,
		slots:       make(chan struct{}, slots),
	}, nil
}

// Process runs one session URL through the pipeline and returns the final
// record. Expected run failures come back as a record in StatusFailed with
// the cause recorded, not as an error; the error return is reserved for
// invalid URLs, duplicate in-flight runs (ErrConflict), and store faults
// that prevent a record from existing at all. Submitting a URL whose
// session is already completed returns the stored record without re-running
// anything.
func (o *Orchestrator) Process(ctx context.Context, rawURL string) (*records.Record, error) {
	sessionID, err := identity.Resolve(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "resolve session",
			"URL is not a valid session source", err)
	}
	canonical, err := identity.Canonicalize(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "resolve session",
			"URL is not a valid session source", err)
	}

	ctx = services.WithSessionID(ctx, sessionID)
	logger := logging.WithContext(ctx, o.logger)

	record, outcome, err := o.store.Claim(ctx, sessionID, canonical)
	if err != nil {
		if errors.Is(err, records.ErrActiveRun) {
			return nil, services.Wrap(services.ErrConflict, "pipeline", "claim session",
				"another run is processing this session", err)
		}
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "claim session",
			"register run", err)
	}
	if outcome == records.ClaimCached {
		logger.Info("returning cached completed record",
			logging.String(logging.FieldEventType, "session_cached"))
		return record, nil
	}

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		failure := services.Wrap(services.ErrCancelled, "pipeline", "await slot",
			"run cancelled", ctx.Err())
		return o.failRecord(ctx, logger, record, failure), nil
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source_url", canonical),
		logging.Int("attempt", record.Attempt),
	)
	if err := o.publisher.PublishLifecycle(ctx, sessionID, records.StatusInProgress, ""); err != nil {
		logger.Debug("lifecycle publish failed", logging.Error(err))
	}

	record = o.run(ctx, logger, record)
	if record.Status == records.StatusFailed {
		return record, nil
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("title", record.Title),
	)
	if err := o.publisher.PublishLifecycle(ctx, sessionID, records.StatusCompleted, ""); err != nil {
		logger.Debug("lifecycle publish failed", logging.Error(err))
	}
	return record, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, record *records.Record) *records.Record {
	runCtx := ctx
	if budget := o.cfg.Pipeline.RunBudgetMinutes; budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(budget)*time.Minute)
		defer cancel()
	}

	tracker, err := progress.NewTracker(stages.Weights())
	if err != nil {
		return o.failRecord(ctx, logger, record, services.Wrap(
			services.ErrConfiguration, "pipeline", "build tracker",
			"assemble progress tracker", err))
	}
	sessionID := record.SessionID
	tracker.Subscribe(func(snapshot progress.Snapshot) {
		if err := o.store.UpdateProgress(runCtx, sessionID, snapshot.Stage,
			snapshot.Message, snapshot.Percent); err != nil {
			logger.Debug("progress persistence failed", logging.Error(err))
		}
		if err := o.publisher.PublishProgress(runCtx, sessionID, snapshot); err != nil {
			logger.Debug("progress publish failed", logging.Error(err))
		}
	})

	scratchDir := filepath.Join(o.cfg.Paths.ScratchDir, sessionID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return o.failRecord(ctx, logger, record, services.Wrap(
			services.ErrConfiguration, "pipeline", "prepare scratch",
			"create scratch directory", err))
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.Warn("scratch cleanup failed", logging.Error(err))
		}
	}()

	run := &stage.Run{
		Record:     record,
		Tracker:    tracker,
		ScratchDir: scratchDir,
	}

	var executed []stage.Handler
	for _, desc := range o.descriptors {
		executed = append(executed, desc.handler)
		if err := stage.Execute(runCtx, logger, desc.policy, desc.handler, run); err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil && !errors.Is(err, services.ErrCancelled) {
				err = services.Wrap(services.ErrTimeout, desc.handler.Name(), "execute",
					"run budget exhausted", err)
			}
			o.compensate(ctx, logger, executed, run)
			return o.failRecord(ctx, logger, record, err)
		}
	}
	return record
}

// compensate unwinds side effects in reverse stage order. It runs under a
// fresh deadline so cleanup still happens when the run context is dead.
func (o *Orchestrator) compensate(ctx context.Context, logger *slog.Logger, executed []stage.Handler, run *stage.Run) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for i := len(executed) - 1; i >= 0; i-- {
		cleaner, ok := executed[i].(stage.Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(cleanupCtx, run); err != nil {
			logger.Warn("stage cleanup failed",
				logging.String("stage", executed[i].Name()),
				logging.Error(err),
			)
		}
	}
}

// failRecord persists the terminal failure and returns the record in its
// failed state, which is what Process hands back to the caller.
func (o *Orchestrator) failRecord(ctx context.Context, logger *slog.Logger, record *records.Record, failure error) *records.Record {
	cause := services.Cause(failure)
	message := strings.TrimSpace(failure.Error())

	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := o.store.Fail(failCtx, record.SessionID, cause, message); err != nil {
		logger.Error("failed to persist run failure", logging.Error(err))
	}
	record.SetFailed(cause, message)
	logger.Error("run failed",
		logging.String(logging.FieldEventType, "run_failure"),
		logging.String("cause", cause),
		logging.Error(failure),
	)
	if err := o.publisher.PublishLifecycle(failCtx, record.SessionID, records.StatusFailed, cause); err != nil {
		logger.Debug("lifecycle publish failed", logging.Error(err))
	}
	return record
}

// Health reports the readiness of every stage in order.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(o.descriptors))
	for _, desc := range o.descriptors {
		health = append(health, desc.handler.HealthCheck(ctx))
	}
	return health
}
