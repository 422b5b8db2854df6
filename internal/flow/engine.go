package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Store is the persisted key-value collaborator. Get reports found=false
// for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

const (
	DefaultAutoSaveInterval = 30 * time.Second
	DefaultProgressKey      = "questionnaireProgress"
	DefaultCheckpointsKey   = "questionnaireCheckpoints"
)

// EngineConfig holds the tunables of an Engine
type EngineConfig struct {
	AutoSaveInterval time.Duration
	ProgressKey      string
	CheckpointsKey   string
	Clock            Clock
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		AutoSaveInterval: DefaultAutoSaveInterval,
		ProgressKey:      DefaultProgressKey,
		CheckpointsKey:   DefaultCheckpointsKey,
		Clock:            SystemClock{},
	}
}

// Engine drives one questionnaire session over a shared, immutable Graph.
// It owns the session's checkpoint list and is not safe for concurrent use.
type Engine struct {
	graph       *Graph
	store       Store
	config      EngineConfig
	checkpoints []Checkpoint
}

// NewEngine creates an engine. A nil config uses DefaultEngineConfig; zero
// fields of a non-nil config fall back to the defaults.
func NewEngine(graph *Graph, store Store, config *EngineConfig) *Engine {
	cfg := *DefaultEngineConfig()
	if config != nil {
		if config.AutoSaveInterval > 0 {
			cfg.AutoSaveInterval = config.AutoSaveInterval
		}
		if config.ProgressKey != "" {
			cfg.ProgressKey = config.ProgressKey
		}
		if config.CheckpointsKey != "" {
			cfg.CheckpointsKey = config.CheckpointsKey
		}
		if config.Clock != nil {
			cfg.Clock = config.Clock
		}
	}
	return &Engine{graph: graph, store: store, config: cfg}
}

// QuestionGraph gives read-only access to the question graph
func (e *Engine) QuestionGraph() *Graph { return e.graph }

func (e *Engine) AutoSaveInterval() time.Duration { return e.config.AutoSaveInterval }

// NewProgress returns a fresh progress positioned at the first question.
func (e *Engine) NewProgress() *Progress {
	return &Progress{
		CurrentQuestionID: e.graph.Start(),
		Answers:           Answers{},
	}
}

func (e *Engine) ResolveNext(currentID string, answers Answers) (string, error) {
	return e.graph.ResolveNext(currentID, answers)
}

func (e *Engine) ProgressPercentage(answers Answers) (int, error) {
	return e.graph.ProgressPercentage(answers)
}

// CreateCheckpoint appends a snapshot of progress when its current question
// is a checkpoint and persists the checkpoint list. It returns the new
// checkpoint, or nil when the question is not a checkpoint. A failed write
// is returned as a *PersistenceError; the checkpoint stays in memory.
func (e *Engine) CreateCheckpoint(ctx context.Context, progress *Progress) (*Checkpoint, error) {
	q, ok := e.graph.question(progress.CurrentQuestionID)
	if !ok || !q.Checkpoint {
		return nil, nil
	}
	pct, err := e.graph.ProgressPercentage(progress.Answers)
	if err != nil {
		return nil, err
	}

	cp := Checkpoint{
		QuestionID: q.ID,
		Timestamp:  e.config.Clock.Now(),
		Answers:    progress.Answers.Clone(),
		Progress:   pct,
	}
	e.checkpoints = append(e.checkpoints, cp)

	out := cloneCheckpoint(cp)
	if err := e.saveJSON(ctx, e.config.CheckpointsKey, e.checkpoints); err != nil {
		return &out, err
	}
	return &out, nil
}

// RestoreCheckpoint rebuilds progress from the most recent checkpoint taken
// at questionID. It returns nil when there is none.
func (e *Engine) RestoreCheckpoint(questionID string) *Progress {
	for i := len(e.checkpoints) - 1; i >= 0; i-- {
		cp := e.checkpoints[i]
		if cp.QuestionID != questionID {
			continue
		}
		saved := cp.Timestamp
		return &Progress{
			CurrentQuestionID: cp.QuestionID,
			Answers:           cp.Answers.Clone(),
			Completed:         false,
			LastCheckpoint:    cp.QuestionID,
			LastSaved:         &saved,
		}
	}
	return nil
}

// ShouldAutoSave reports whether the auto-save interval has elapsed since
// lastSaved. A nil lastSaved always saves.
func (e *Engine) ShouldAutoSave(lastSaved *time.Time) bool {
	if lastSaved == nil {
		return true
	}
	return e.config.Clock.Now().Sub(*lastSaved) >= e.config.AutoSaveInterval
}

// AutoSave persists progress if the auto-save interval has elapsed, then
// takes a checkpoint if the current question qualifies. It reports whether
// progress was written. LastSaved is only advanced after a successful write;
// a failed progress write comes back as *PersistenceError and is not fatal.
// A failed checkpoint is logged and does not count against the save.
func (e *Engine) AutoSave(ctx context.Context, progress *Progress) (bool, error) {
	if !e.ShouldAutoSave(progress.LastSaved) {
		return false, nil
	}

	snapshot, saveErr := e.save(ctx, progress)
	if saveErr != nil {
		log.Printf("Auto-save of %s failed, will retry on next tick: %v", e.config.ProgressKey, saveErr)
	}

	if _, err := e.CreateCheckpoint(ctx, snapshot); err != nil {
		log.Printf("Checkpoint at %s failed: %v", snapshot.CurrentQuestionID, err)
	}
	return saveErr == nil, saveErr
}

// Save persists progress regardless of the auto-save interval. It does not
// take a checkpoint.
func (e *Engine) Save(ctx context.Context, progress *Progress) error {
	_, err := e.save(ctx, progress)
	return err
}

func (e *Engine) save(ctx context.Context, progress *Progress) (*Progress, error) {
	now := e.config.Clock.Now()
	snapshot := progress.Clone()
	snapshot.LastSaved = &now
	if err := e.saveJSON(ctx, e.config.ProgressKey, snapshot); err != nil {
		return snapshot, err
	}
	progress.LastSaved = &now
	return snapshot, nil
}

// LoadProgress reads saved progress. Missing or undecodable progress is
// reported as (nil, nil) so the caller starts fresh.
func (e *Engine) LoadProgress(ctx context.Context) (*Progress, error) {
	raw, found, err := e.store.Get(ctx, e.config.ProgressKey)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Key: e.config.ProgressKey, Err: err}
	}
	if !found {
		return nil, nil
	}
	var p Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Printf("Discarding unreadable progress at %s: %v", e.config.ProgressKey, err)
		return nil, nil
	}
	if !e.graph.Has(p.CurrentQuestionID) {
		log.Printf("Discarding progress at %s: unknown question %q", e.config.ProgressKey, p.CurrentQuestionID)
		return nil, nil
	}
	p.Answers = e.graph.NormalizeAnswers(p.Answers)
	return &p, nil
}

// LoadCheckpoints replaces the in-memory checkpoint list with the stored one.
// Undecodable data leaves the list empty.
func (e *Engine) LoadCheckpoints(ctx context.Context) error {
	raw, found, err := e.store.Get(ctx, e.config.CheckpointsKey)
	if err != nil {
		return &PersistenceError{Op: "get", Key: e.config.CheckpointsKey, Err: err}
	}
	e.checkpoints = nil
	if !found {
		return nil
	}
	var cps []Checkpoint
	if err := json.Unmarshal([]byte(raw), &cps); err != nil {
		log.Printf("Discarding unreadable checkpoints at %s: %v", e.config.CheckpointsKey, err)
		return nil
	}
	for i := range cps {
		cps[i].Answers = e.graph.NormalizeAnswers(cps[i].Answers)
	}
	e.checkpoints = cps
	return nil
}

// Checkpoints returns copies of the recorded checkpoints, oldest first.
func (e *Engine) Checkpoints() []Checkpoint {
	out := make([]Checkpoint, len(e.checkpoints))
	for i, cp := range e.checkpoints {
		out[i] = cloneCheckpoint(cp)
	}
	return out
}

func (e *Engine) LastCheckpoint() *Checkpoint {
	if len(e.checkpoints) == 0 {
		return nil
	}
	cp := cloneCheckpoint(e.checkpoints[len(e.checkpoints)-1])
	return &cp
}

// Clear removes saved progress and checkpoints from the store, then from
// memory. On a failed delete the in-memory checkpoints are kept.
func (e *Engine) Clear(ctx context.Context) error {
	for _, key := range []string{e.config.ProgressKey, e.config.CheckpointsKey} {
		if err := e.store.Delete(ctx, key); err != nil {
			return &PersistenceError{Op: "delete", Key: key, Err: err}
		}
	}
	e.checkpoints = nil
	return nil
}

func (e *Engine) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: fmt.Errorf("marshal: %w", err)}
	}
	if err := e.store.Set(ctx, key, string(data)); err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func cloneCheckpoint(cp Checkpoint) Checkpoint {
	cp.Answers = cp.Answers.Clone()
	return cp
}
