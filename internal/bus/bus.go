package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"plenary/internal/config"
	"plenary/internal/progress"
	"plenary/internal/records"
	"plenary/internal/services"
)

// ProgressEvent is the wire form of one progress snapshot.
type ProgressEvent struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// LifecycleEvent announces a record entering a terminal or initial state.
type LifecycleEvent struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Cause     string    `json:"cause,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher fans pipeline events out to interested consumers.
type Publisher interface {
	PublishProgress(ctx context.Context, sessionID string, snapshot progress.Snapshot) error
	PublishLifecycle(ctx context.Context, sessionID string, status records.Status, cause string) error
	Close()
}

// ProgressSubject builds the subject progress events for a session are
// published on.
func ProgressSubject(prefix, sessionID string) string {
	return fmt.Sprintf("%s.progress.%s", prefix, sessionID)
}

// LifecycleSubject builds the subject lifecycle events for a session are
// published on.
func LifecycleSubject(prefix, sessionID string) string {
	return fmt.Sprintf("%s.session.%s", prefix, sessionID)
}

// Connect establishes a NATS connection per the bus configuration. When the
// bus is disabled a no-op publisher is returned so callers need no branching.
func Connect(cfg config.Bus) (Publisher, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, services.Wrap(services.ErrConfiguration, "bus", "connect",
			"bus URL is required when the bus is enabled", nil)
	}
	prefix := strings.TrimSpace(cfg.SubjectPrefix)
	if prefix == "" {
		prefix = "plenary"
	}

	conn, err := nats.Connect(url,
		nats.Name("plenary"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "bus", "connect",
			"connect to NATS", err)
	}
	return &natsPublisher{conn: conn, prefix: prefix}, nil
}

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
}

func (p *natsPublisher) PublishProgress(ctx context.Context, sessionID string, snapshot progress.Snapshot) error {
	event := ProgressEvent{
		SessionID: sessionID,
		Stage:     snapshot.Stage,
		Percent:   snapshot.Percent,
		Message:   snapshot.Message,
		At:        snapshot.UpdatedAt,
	}
	return p.publish(ctx, ProgressSubject(p.prefix, sessionID), event)
}

func (p *natsPublisher) PublishLifecycle(ctx context.Context, sessionID string, status records.Status, cause string) error {
	event := LifecycleEvent{
		SessionID: sessionID,
		Status:    string(status),
		Cause:     cause,
		At:        time.Now().UTC(),
	}
	return p.publish(ctx, LifecycleSubject(p.prefix, sessionID), event)
}

func (p *natsPublisher) publish(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "bus", "publish", "context done", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return services.Wrap(services.ErrValidation, "bus", "publish", "encode event", err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return services.Retryable("bus", "publish", "publish to "+subject, err)
	}
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

type noopPublisher struct{}

// NewNoop returns a publisher that drops every event.
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishProgress(context.Context, string, progress.Snapshot) error {
	return nil
}

func (noopPublisher) PublishLifecycle(context.Context, string, records.Status, string) error {
	return nil
}

func (noopPublisher) Close() {}
