package batch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"plenary/internal/config"
	"plenary/internal/identity"
	"plenary/internal/logging"
	"plenary/internal/records"
	"plenary/internal/services"
)

// Processor is the pipeline contract the runner drives.
type Processor interface {
	Process(ctx context.Context, rawURL string) (*records.Record, error)
}

// Result is the outcome of one submitted URL. Run failures surface as a
// failed record status with its cause; Err is reserved for submissions the
// pipeline rejected outright (conflicts, invalid URLs).
type Result struct {
	URL       string
	SessionID string
	Status    records.Status
	Cause     string
	Err       error
}

// Succeeded reports whether the submission produced a completed record.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.Status == records.StatusCompleted
}

// Summary aggregates a batch run.
type Summary struct {
	Submitted int
	Succeeded int
	Failed    int
	Results   []Result
}

// Runner processes many session URLs through a bounded worker pool. A file
// lock serializes batch invocations so two processes cannot race the same
// queue of work.
type Runner struct {
	processor Processor
	logger    *slog.Logger
	workers   int
	lock      *flock.Flock
}

// New constructs a runner from the pipeline configuration.
func New(processor Processor, logger *slog.Logger, cfg *config.Config) (*Runner, error) {
	if processor == nil {
		return nil, fmt.Errorf("batch: processor is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("batch: configuration is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Pipeline.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: create data directory: %w", err)
	}
	return &Runner{
		processor: processor,
		logger:    logging.NewComponentLogger(logger, "batch"),
		workers:   workers,
		lock:      flock.New(filepath.Join(cfg.Paths.DataDir, "plenary.lock")),
	}, nil
}

// Run processes the URLs and returns a summary. URLs that resolve to the
// same session are submitted once.
func (r *Runner) Run(ctx context.Context, urls []string) (*Summary, error) {
	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "acquire lock",
			"batch lock unavailable", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConflict, "batch", "acquire lock",
			"another batch is already running", nil)
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("release batch lock failed", logging.Error(err))
		}
	}()

	unique := dedupeURLs(urls)
	summary := &Summary{Submitted: len(unique)}
	if len(unique) == 0 {
		return summary, nil
	}
	r.logger.Info("batch started",
		logging.Int("submitted", len(urls)),
		logging.Int("unique", len(unique)),
		logging.Int("workers", r.workers),
	)

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rawURL := range jobs {
				result := Result{URL: rawURL}
				record, err := r.processor.Process(ctx, rawURL)
				if err != nil {
					result.Err = err
				} else {
					result.SessionID = record.SessionID
					result.Status = record.Status
					result.Cause = record.ErrorCause
				}
				mu.Lock()
				summary.Results = append(summary.Results, result)
				if result.Succeeded() {
					summary.Succeeded++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, rawURL := range unique {
		select {
		case jobs <- rawURL:
		case <-ctx.Done():
			// Stop feeding; in-flight runs observe the cancellation
			// themselves.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	r.logger.Info("batch finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

// ReadURLFile loads one URL per line, skipping blanks and # comments.
func ReadURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: open url file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("batch: read url file: %w", err)
	}
	return urls, nil
}

func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, rawURL := range urls {
		rawURL = strings.TrimSpace(rawURL)
		if rawURL == "" {
			continue
		}
		key := rawURL
		if id, err := identity.Resolve(rawURL); err == nil {
			key = id
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rawURL)
	}
	return out
}
