package main

import (
	"context"
	"fmt"

	"plenary/internal/bus"
	"plenary/internal/config"
	"plenary/internal/logging"
	"plenary/internal/pipeline"
	"plenary/internal/records"
	"plenary/internal/services/media"
	"plenary/internal/services/openai"
	"plenary/internal/services/webtv"
	"plenary/internal/vector"

	"log/slog"
)

// runtime bundles every long-lived collaborator a processing command needs.
// Close releases them in reverse construction order.
type runtime struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *records.Store
	publisher    bus.Publisher
	vectors      *vector.Store
	orchestrator *pipeline.Orchestrator
}

func newRuntime(ctx context.Context, c *commandContext) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := records.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}

	publisher, err := bus.Connect(cfg.Bus)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connect event bus: %w", err)
	}
	rt.publisher = publisher

	aiClient, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := pipeline.Options{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Publisher:  publisher,
		Metadata:   webtv.NewClient(),
		Audio:      media.NewService(cfg.Media),
		Transcribe: aiClient,
		Extract:    aiClient,
		Summarize:  aiClient,
		Embed:      aiClient,
	}

	if cfg.Vector.Enabled {
		vectors, err := vector.Open(ctx, cfg.Vector, cfg.OpenAI.EmbeddingDimensions)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open vector index: %w", err)
		}
		rt.vectors = vectors
		opts.Vectors = vectors
	}

	orchestrator, err := pipeline.New(opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orchestrator = orchestrator
	return rt, nil
}

func (r *runtime) Close() {
	if r.vectors != nil {
		r.vectors.Close()
	}
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
}
