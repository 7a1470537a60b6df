package records

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a processing record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Record is the durable artifact of one processed session, keyed by the
// deterministic session identifier. It is created when a URL is first
// submitted and mutated only through orchestrator-issued transitions.
type Record struct {
	SessionID string
	SourceURL string
	Title     string
	Status    Status
	Attempt   int

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	MetadataJSON   string
	TranscriptJSON string
	EntitiesJSON   string
	Summary        string
	EmbeddingRef   string
	SegmentCount   int
	WordCount      int
	Language       string

	ErrorCause   string
	ErrorMessage string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// HealthSummary describes aggregated record counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// SetProgress updates all three progress fields together.
func (r *Record) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetFailed marks the record as failed with the given cause and message.
func (r *Record) SetFailed(cause, message string) {
	r.Status = StatusFailed
	r.ErrorCause = cause
	r.ErrorMessage = message
	r.ProgressStage = "failed"
	r.ProgressMessage = message
}

// DecodeMetadata unmarshals the stored session metadata, if any.
func (r *Record) DecodeMetadata(target any) error {
	if strings.TrimSpace(r.MetadataJSON) == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.MetadataJSON), target)
}

// IsTerminal reports whether the record reached a terminal lifecycle state.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
