package bus_test

import (
	"context"
	"errors"
	"testing"

	"plenary/internal/bus"
	"plenary/internal/config"
	"plenary/internal/progress"
	"plenary/internal/records"
	"plenary/internal/services"
)

func TestConnectDisabledReturnsNoop(t *testing.T) {
	publisher, err := bus.Connect(config.Bus{Enabled: false})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer publisher.Close()

	if err := publisher.PublishProgress(context.Background(), "abc", progress.Snapshot{Stage: "transcribing"}); err != nil {
		t.Fatalf("noop PublishProgress failed: %v", err)
	}
	if err := publisher.PublishLifecycle(context.Background(), "abc", records.StatusCompleted, ""); err != nil {
		t.Fatalf("noop PublishLifecycle failed: %v", err)
	}
}

func TestConnectEnabledRequiresURL(t *testing.T) {
	_, err := bus.Connect(config.Bus{Enabled: true})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSubjects(t *testing.T) {
	if got := bus.ProgressSubject("plenary", "abc123"); got != "plenary.progress.abc123" {
		t.Fatalf("unexpected progress subject: %q", got)
	}
	if got := bus.LifecycleSubject("plenary", "abc123"); got != "plenary.session.abc123" {
		t.Fatalf("unexpected lifecycle subject: %q", got)
	}
}
