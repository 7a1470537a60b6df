package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for stage and collaborator failures. Wrap tags an error
// with exactly one marker; the orchestrator classifies outcomes with errors.Is.
var (
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrAcquisition   = errors.New("acquisition error")
	ErrTranscription = errors.New("transcription error")
	ErrExtraction    = errors.New("extraction error")
	ErrEmbedding     = errors.New("embedding error")
	ErrPersistence   = errors.New("persistence error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrCancelled     = errors.New("cancelled")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker. The marker should be one of the exported sentinel
// errors above; a nil marker defaults to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable marks an error as transient so the stage executor retries it.
func Retryable(stage, operation, message string, err error) error {
	return Wrap(ErrTransient, stage, operation, message, err)
}

// IsRetryable reports whether the stage executor may retry after err.
// Timeouts and transient failures are retryable; validation, configuration,
// missing-resource, conflict, and cancellation errors are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return false
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrTransient):
		return true
	}
	// Collaborator markers default to retryable; callers wrap terminal
	// causes (bad credentials, malformed input) with ErrValidation instead.
	return errors.Is(err, ErrAcquisition) ||
		errors.Is(err, ErrTranscription) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrEmbedding) ||
		errors.Is(err, ErrPersistence)
}

// causeNames maps each marker to the keyword recorded as a record's failure
// cause. ErrTransient is last so a retry wrapper never hides the owning
// stage's marker.
var causeNames = []struct {
	marker error
	name   string
}{
	{ErrConflict, "conflict"},
	{ErrNotFound, "not_found"},
	{ErrAcquisition, "acquisition"},
	{ErrTranscription, "transcription"},
	{ErrExtraction, "extraction"},
	{ErrEmbedding, "embedding"},
	{ErrPersistence, "persistence"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrCancelled, "cancelled"},
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
}

// Cause returns the short keyword recorded on a processing record for err,
// one of the causeNames entries. Unmarked errors fall back to their text.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range causeNames {
		if errors.Is(err, entry.marker) {
			return entry.name
		}
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
