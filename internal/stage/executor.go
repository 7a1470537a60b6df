package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"plenary/internal/logging"
	"plenary/internal/services"
)

// Policy controls retry behavior for a single stage.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Base is the initial backoff delay between attempts.
	Base time.Duration
	// Max caps the backoff delay.
	Max time.Duration
	// Timeout bounds each individual attempt. Zero means no per-attempt
	// deadline beyond the parent context.
	Timeout time.Duration
}

// Execute runs one stage under the retry policy. Attempts that exceed the
// per-attempt timeout are treated as retryable; errors the taxonomy marks
// terminal stop immediately. Cancellation of the parent context always wins.
func Execute(ctx context.Context, logger *slog.Logger, policy Policy, handler Handler, run *Run) error {
	if handler == nil {
		return errors.New("stage handler is required")
	}
	if run == nil || run.Record == nil {
		return errors.New("stage run state is required")
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	stageCtx := services.WithStage(ctx, handler.Name())
	stageLogger := logging.WithContext(stageCtx, logger)

	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx := stageCtx
		cancel := context.CancelFunc(func() {})
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(stageCtx, policy.Timeout)
		}
		defer cancel()

		err := handler.Execute(attemptCtx, run)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(services.Wrap(
				services.ErrCancelled, handler.Name(), "execute",
				"run cancelled", ctx.Err()))
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, handler.Name(), "execute",
				fmt.Sprintf("attempt exceeded %s deadline", policy.Timeout), err)
		}
		if !services.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policyBackoff := backoff.NewExponentialBackOff()
	policyBackoff.InitialInterval = policy.Base
	policyBackoff.MaxInterval = policy.Max
	policyBackoff.MaxElapsedTime = 0
	policyBackoff.RandomizationFactor = 0.2

	notify := func(err error, next time.Duration) {
		stageLogger.Warn(
			"stage attempt failed, retrying",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", policy.Attempts),
			logging.Duration("next_delay", next),
			logging.Error(err),
		)
	}

	wrapped := backoff.WithContext(
		backoff.WithMaxRetries(policyBackoff, uint64(policy.Attempts-1)),
		stageCtx)
	if err := backoff.RetryNotify(operation, wrapped, notify); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}
		return err
	}
	return nil
}
