package progress

import (
	"fmt"
	"sync"
	"time"
)

// StageWeight assigns a share of the overall completion percentage to one
// pipeline stage. Weights are relative; the tracker normalizes them.
type StageWeight struct {
	Name   string
	Weight float64
}

// Snapshot is an immutable view of pipeline progress at one moment.
type Snapshot struct {
	Stage     string
	Percent   float64
	Message   string
	UpdatedAt time.Time
}

// Listener receives every snapshot the tracker publishes.
type Listener func(Snapshot)

// Tracker converts per-stage completion fractions into a single monotone
// overall percentage. It is safe for concurrent use; stage handlers report
// through it while observers read snapshots.
type Tracker struct {
	mu        sync.RWMutex
	order     []StageWeight
	index     map[string]int
	total     float64
	percent   float64
	stage     string
	message   string
	updatedAt time.Time
	listeners []Listener
}

// NewTracker builds a tracker over an ordered list of weighted stages.
func NewTracker(stages []StageWeight) (*Tracker, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("progress: at least one stage is required")
	}
	index := make(map[string]int, len(stages))
	var total float64
	for i, stage := range stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("progress: stage %d has no name", i)
		}
		if stage.Weight <= 0 {
			return nil, fmt.Errorf("progress: stage %s has non-positive weight", stage.Name)
		}
		if _, exists := index[stage.Name]; exists {
			return nil, fmt.Errorf("progress: duplicate stage %s", stage.Name)
		}
		index[stage.Name] = i
		total += stage.Weight
	}
	ordered := make([]StageWeight, len(stages))
	copy(ordered, stages)
	return &Tracker{
		order:     ordered,
		index:     index,
		total:     total,
		updatedAt: time.Now().UTC(),
	}, nil
}

// Subscribe registers a listener for every future snapshot. Listeners run
// synchronously on the reporting goroutine and must not block.
func (t *Tracker) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, listener)
	t.mu.Unlock()
}

// Begin marks a stage as started without advancing the percentage.
func (t *Tracker) Begin(stage, message string) error {
	return t.Update(stage, 0, message)
}

// Update records completion of a stage as a fraction in [0, 1]. The overall
// percentage never moves backwards: a stale or out-of-order report keeps the
// highest value seen so far.
func (t *Tracker) Update(stage string, fraction float64, message string) error {
	idx, ok := t.indexOf(stage)
	if !ok {
		return fmt.Errorf("progress: unknown stage %q", stage)
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	t.mu.Lock()
	var before float64
	for i := 0; i < idx; i++ {
		before += t.order[i].Weight
	}
	candidate := (before + fraction*t.order[idx].Weight) / t.total * 100
	if candidate > t.percent {
		t.percent = candidate
	}
	t.stage = stage
	t.message = message
	t.updatedAt = time.Now().UTC()
	snapshot := t.snapshotLocked()
	listeners := make([]Listener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
	return nil
}

// Complete marks a stage fully done.
func (t *Tracker) Complete(stage, message string) error {
	return t.Update(stage, 1, message)
}

// Snapshot returns the current progress view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Stages returns the configured stage names in execution order.
func (t *Tracker) Stages() []string {
	names := make([]string, len(t.order))
	for i, stage := range t.order {
		names[i] = stage.Name
	}
	return names
}

func (t *Tracker) indexOf(stage string) (int, bool) {
	idx, ok := t.index[stage]
	return idx, ok
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Stage:     t.stage,
		Percent:   t.percent,
		Message:   t.message,
		UpdatedAt: t.updatedAt,
	}
}
