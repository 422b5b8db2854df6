package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"questionnaire-service/internal/event"
	"questionnaire-service/internal/flow"
	"questionnaire-service/internal/metrics"
	"questionnaire-service/internal/models"
	"questionnaire-service/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("questionnaire session not found")
	ErrNoProgress      = errors.New("no checkpoint to restore for this question")
	ErrNotCompleted    = errors.New("questionnaire is not completed")
)

// DefaultIdleTTL is how long a loaded session may go unused before the
// auto-save loop drops it from memory.
const DefaultIdleTTL = time.Hour

type Options struct {
	KeyPrefix        string
	AutoSaveInterval time.Duration
	// IdleTTL bounds how long a saved, unused session stays in memory.
	IdleTTL time.Duration
	Clock   flow.Clock
}

// SessionService runs one flow engine per questionnaire session over a
// shared question graph. Calls on the same session are serialized.
type SessionService struct {
	graph     *flow.Graph
	repo      *repository.SessionRepository
	publisher event.Publisher
	engineCfg flow.EngineConfig
	clock     flow.Clock
	idleTTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu             sync.Mutex
	record         models.QuestionnaireSession
	engine         *flow.Engine
	progress       *flow.Progress
	autoSaveFailed bool
	// dirty is set while progress holds changes not yet written.
	dirty      bool
	lastActive time.Time
	evicted    bool
}

func NewSessionService(graph *flow.Graph, store flow.Store, publisher event.Publisher, opts Options) *SessionService {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "questionnaire"
	}
	if opts.Clock == nil {
		opts.Clock = flow.SystemClock{}
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &SessionService{
		graph:     graph,
		repo:      repository.NewSessionRepository(store, opts.KeyPrefix),
		publisher: publisher,
		engineCfg: flow.EngineConfig{AutoSaveInterval: opts.AutoSaveInterval, Clock: opts.Clock},
		clock:     opts.Clock,
		idleTTL:   opts.IdleTTL,
		sessions:  make(map[string]*session),
	}
}

// Graph gives read-only access to the question graph
func (s *SessionService) Graph() *flow.Graph { return s.graph }

// Resolve is the pure next-question lookup used by clients that keep their
// own answers.
func (s *SessionService) Resolve(questionID string, answers flow.Answers) (*models.ResolveResponse, error) {
	answers = s.graph.NormalizeAnswers(answers)
	next, err := s.graph.ResolveNext(questionID, answers)
	if err != nil {
		countResolutionError(err)
		return nil, err
	}
	resp := &models.ResolveResponse{QuestionID: questionID, NextQuestionID: next, Completed: next == ""}
	if next != "" {
		q, err := s.graph.Question(next)
		if err != nil {
			return nil, err
		}
		resp.NextQuestion = &q
	}
	return resp, nil
}

func (s *SessionService) Progress(answers flow.Answers) (*models.ProgressResponse, error) {
	answers = s.graph.NormalizeAnswers(answers)
	pct, err := s.graph.ProgressPercentage(answers)
	if err != nil {
		return nil, err
	}
	sections, err := s.graph.SectionProgress(answers)
	if err != nil {
		return nil, err
	}
	last, err := s.graph.LastAnsweredCheckpoint(answers)
	if err != nil {
		return nil, err
	}
	return &models.ProgressResponse{Progress: pct, Sections: sections, LastCheckpoint: last}, nil
}

// StartSession resumes the user's open session, or creates a new one.
func (s *SessionService) StartSession(ctx context.Context, userID string) (*models.SessionView, error) {
	id, err := s.repo.FindActiveID(ctx, userID)
	switch {
	case err == nil:
		sess, err := s.acquire(ctx, userID, id)
		if err == nil {
			defer sess.mu.Unlock()
			metrics.SessionsStarted.WithLabelValues("resumed").Inc()
			view, err := s.view(sess)
			if err != nil {
				return nil, err
			}
			view.Resumed = true
			return view, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		log.Printf("Active session %s of user %s is gone, starting a new one", id, userID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}

	return s.create(ctx, userID)
}

func (s *SessionService) create(ctx context.Context, userID string) (*models.SessionView, error) {
	now := s.clock.Now()
	record := models.QuestionnaireSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    models.SessionStatusActive,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.repo.SetActive(ctx, userID, record.ID); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}

	engine := flow.NewEngine(s.graph, s.repo.Store(record.ID), &s.engineCfg)
	sess := &session{record: record, engine: engine, progress: engine.NewProgress(), dirty: true, lastActive: now}

	s.mu.Lock()
	s.sessions[record.ID] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.autoSave(ctx, sess)

	metrics.SessionsStarted.WithLabelValues("new").Inc()
	s.publish(sess, event.EventTypeSessionStarted, "", nil)
	return s.view(sess)
}

// Session returns the current view of a session.
func (s *SessionService) Session(ctx context.Context, userID, sessionID string) (*models.SessionView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.view(sess)
}

// SubmitAnswer records an answer to the current question, or to an earlier
// answered question when the user goes back, and moves to the resolved next
// question. Resolution errors leave the session untouched.
func (s *SessionService) SubmitAnswer(ctx context.Context, userID, sessionID string, req models.AnswerRequest) (*models.SessionView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	p := sess.progress
	q, err := s.graph.Question(req.QuestionID)
	if err != nil {
		metrics.AnswersSubmitted.WithLabelValues("failure").Inc()
		return nil, err
	}
	if q.ID != p.CurrentQuestionID && !p.Answers.Has(q.ID) {
		metrics.AnswersSubmitted.WithLabelValues("failure").Inc()
		return nil, &flow.ValidationError{QuestionID: q.ID, Reason: "question has not been reached yet"}
	}

	value, err := s.graph.NormalizeAnswer(q.ID, req.Answer)
	if err != nil {
		metrics.AnswersSubmitted.WithLabelValues("failure").Inc()
		return nil, err
	}
	answers := p.Answers.With(q.ID, value)

	next, err := s.graph.ResolveNext(q.ID, answers)
	if err != nil {
		metrics.AnswersSubmitted.WithLabelValues("failure").Inc()
		countResolutionError(err)
		log.Printf("Session %s: cannot resolve next question after %s: %v", sessionID, q.ID, err)
		s.publishError(sess, q.ID, err)
		return nil, err
	}

	updated := p.Clone()
	updated.Answers = answers
	if next == "" {
		updated.CurrentQuestionID = q.ID
		updated.Completed = true
	} else {
		updated.CurrentQuestionID = next
		updated.Completed = false
	}
	if q.Checkpoint {
		updated.LastCheckpoint = q.ID
		before := len(sess.engine.Checkpoints())
		_, err := sess.engine.CreateCheckpoint(ctx, &flow.Progress{CurrentQuestionID: q.ID, Answers: answers})
		if err != nil {
			log.Printf("Session %s: checkpoint at %s not persisted: %v", sessionID, q.ID, err)
		}
		s.noteCheckpoints(sess, before)
	}
	sess.progress = updated
	sess.dirty = true
	metrics.AnswersSubmitted.WithLabelValues("success").Inc()
	s.publish(sess, event.EventTypeAnswerSubmitted, q.ID, nil)

	if updated.Completed {
		s.save(ctx, sess)
	} else {
		s.autoSave(ctx, sess)
	}
	s.touch(ctx, sess)
	return s.view(sess)
}

// AutoSave is the periodic tick driven by the client.
func (s *SessionService) AutoSave(ctx context.Context, userID, sessionID string) (*models.SessionView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	s.autoSave(ctx, sess)
	return s.view(sess)
}

func (s *SessionService) Checkpoints(ctx context.Context, userID, sessionID string) ([]models.CheckpointView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	cps := sess.engine.Checkpoints()
	out := make([]models.CheckpointView, 0, len(cps))
	for _, cp := range cps {
		out = append(out, models.CheckpointView{
			QuestionID: cp.QuestionID,
			Section:    s.graph.Section(cp.QuestionID),
			Timestamp:  cp.Timestamp,
			Progress:   cp.Progress,
			Answers:    cp.Answers,
		})
	}
	return out, nil
}

// RestoreCheckpoint rewinds the session to the latest checkpoint taken at
// questionID.
func (s *SessionService) RestoreCheckpoint(ctx context.Context, userID, sessionID, questionID string) (*models.SessionView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if !s.graph.Has(questionID) {
		return nil, &flow.NotFoundError{QuestionID: questionID}
	}
	restored := sess.engine.RestoreCheckpoint(questionID)
	if restored == nil {
		return nil, ErrNoProgress
	}
	sess.progress = restored
	sess.dirty = true
	s.save(ctx, sess)
	s.touch(ctx, sess)
	s.publish(sess, event.EventTypeCheckpointRestored, questionID, nil)
	return s.view(sess)
}

// Restart clears stored progress and checkpoints and starts over at the
// first question.
func (s *SessionService) Restart(ctx context.Context, userID, sessionID string) (*models.SessionView, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if err := sess.engine.Clear(ctx); err != nil {
		return nil, err
	}
	sess.progress = sess.engine.NewProgress()
	sess.dirty = true
	sess.autoSaveFailed = false
	s.touch(ctx, sess)
	s.publish(sess, event.EventTypeSessionRestarted, "", nil)
	return s.view(sess)
}

// Finalize hands the completed answers downstream and removes the session
// state from storage.
func (s *SessionService) Finalize(ctx context.Context, userID, sessionID string) (*models.CompletionResult, error) {
	sess, err := s.acquire(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if !sess.progress.Completed {
		return nil, ErrNotCompleted
	}

	now := s.clock.Now()
	result := &models.CompletionResult{
		SessionID:   sess.record.ID,
		UserID:      sess.record.UserID,
		Answers:     sess.progress.Answers.Clone(),
		CompletedAt: now,
	}
	s.publish(sess, event.EventTypeCompleted, sess.progress.CurrentQuestionID, result.Answers)

	if err := sess.engine.Clear(ctx); err != nil {
		return nil, err
	}
	sess.record.Status = models.SessionStatusFinalized
	sess.record.CompletedAt = &now
	sess.record.UpdatedAt = now
	if err := s.repo.Save(ctx, &sess.record); err != nil {
		log.Printf("Session %s: failed to save finalized record: %v", sess.record.ID, err)
	}
	if err := s.repo.ClearActive(ctx, userID); err != nil {
		log.Printf("Session %s: failed to clear active index for user %s: %v", sess.record.ID, userID, err)
	}

	s.forget(sess)
	metrics.SessionsCompleted.Inc()
	return result, nil
}

// RunAutoSave ticks every loaded session at the auto-save interval until
// ctx is done. Sessions with nothing to save are left alone, and those idle
// past the idle TTL are dropped from memory.
func (s *SessionService) RunAutoSave(ctx context.Context) {
	interval := s.engineCfg.AutoSaveInterval
	if interval <= 0 {
		interval = flow.DefaultAutoSaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autoSaveAll(ctx)
		}
	}
}

func (s *SessionService) autoSaveAll(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		s.autoSave(ctx, sess)
		if !sess.dirty && s.clock.Now().Sub(sess.lastActive) >= s.idleTTL {
			sess.evicted = true
			s.forget(sess)
			log.Printf("Session %s idle since %s, unloaded", sess.record.ID, sess.lastActive.Format(time.RFC3339))
		}
		sess.mu.Unlock()
	}
}

// forget drops a session from memory. The caller holds sess.mu.
func (s *SessionService) forget(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.record.ID] == sess {
		delete(s.sessions, sess.record.ID)
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

// acquire returns the session locked. The caller unlocks it.
func (s *SessionService) acquire(ctx context.Context, userID, sessionID string) (*session, error) {
	for {
		sess, err := s.get(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		sess.mu.Lock()
		if sess.evicted {
			// unloaded while we waited; the next get reloads it
			sess.mu.Unlock()
			continue
		}
		if sess.record.Status == models.SessionStatusFinalized {
			sess.mu.Unlock()
			return nil, ErrSessionNotFound
		}
		sess.lastActive = s.clock.Now()
		return sess, nil
	}
}

// get returns the loaded session, loading it from storage on first use.
// Sessions of other users are reported as not found.
func (s *SessionService) get(ctx context.Context, userID, sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		if sess.record.UserID != userID {
			return nil, ErrSessionNotFound
		}
		return sess, nil
	}

	record, err := s.repo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if record.UserID != userID || record.Status == models.SessionStatusFinalized {
		return nil, ErrSessionNotFound
	}

	engine := flow.NewEngine(s.graph, s.repo.Store(record.ID), &s.engineCfg)
	progress, err := engine.LoadProgress(ctx)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		log.Printf("Session %s has no usable saved progress, starting fresh", record.ID)
		progress = engine.NewProgress()
	}
	if err := engine.LoadCheckpoints(ctx); err != nil {
		log.Printf("Session %s: checkpoints not loaded: %v", record.ID, err)
	}

	sess := &session{record: *record, engine: engine, progress: progress, lastActive: s.clock.Now()}
	if progress.LastSaved == nil {
		sess.dirty = true
	}
	s.sessions[record.ID] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return sess, nil
}

// autoSave writes progress changed since the last successful save, subject
// to the auto-save interval. Completed sessions are only written, never
// checkpointed again.
func (s *SessionService) autoSave(ctx context.Context, sess *session) {
	if !sess.dirty {
		return
	}
	if sess.progress.Completed {
		if sess.engine.ShouldAutoSave(sess.progress.LastSaved) {
			s.save(ctx, sess)
		}
		return
	}

	before := len(sess.engine.Checkpoints())
	saved, err := sess.engine.AutoSave(ctx, sess.progress)
	s.noteCheckpoints(sess, before)

	if saved {
		sess.dirty = false
		sess.autoSaveFailed = false
		metrics.AutoSaves.WithLabelValues("success").Inc()
		return
	}
	if err == nil {
		return
	}
	sess.autoSaveFailed = true
	metrics.AutoSaves.WithLabelValues("failure").Inc()
	s.publish(sess, event.EventTypeAutoSaveFailed, sess.progress.CurrentQuestionID, nil)
}

func (s *SessionService) save(ctx context.Context, sess *session) {
	err := sess.engine.Save(ctx, sess.progress)
	metrics.AutoSaves.WithLabelValues(metrics.Status(err)).Inc()
	sess.autoSaveFailed = err != nil
	sess.dirty = err != nil
	if err != nil {
		log.Printf("Session %s: save failed, will retry on next tick: %v", sess.record.ID, err)
		s.publish(sess, event.EventTypeAutoSaveFailed, sess.progress.CurrentQuestionID, nil)
	}
}

func (s *SessionService) touch(ctx context.Context, sess *session) {
	sess.record.UpdatedAt = s.clock.Now()
	if sess.progress.Completed {
		sess.record.Status = models.SessionStatusCompleted
	} else {
		sess.record.Status = models.SessionStatusActive
	}
	if err := s.repo.Save(ctx, &sess.record); err != nil {
		log.Printf("Session %s: failed to update record: %v", sess.record.ID, err)
	}
}

func (s *SessionService) noteCheckpoints(sess *session, before int) {
	cps := sess.engine.Checkpoints()
	for _, cp := range cps[before:] {
		metrics.CheckpointsCreated.Inc()
		s.publish(sess, event.EventTypeCheckpointCreated, cp.QuestionID, nil)
	}
}

func (s *SessionService) view(sess *session) (*models.SessionView, error) {
	p := sess.progress
	pct, err := s.graph.ProgressPercentage(p.Answers)
	if err != nil {
		return nil, err
	}
	sections, err := s.graph.SectionProgress(p.Answers)
	if err != nil {
		return nil, err
	}

	view := &models.SessionView{
		SessionID:      sess.record.ID,
		UserID:         sess.record.UserID,
		Status:         sess.record.Status,
		Answers:        p.Answers.Clone(),
		Completed:      p.Completed,
		Progress:       pct,
		Sections:       sections,
		LastCheckpoint: p.LastCheckpoint,
		LastSaved:      p.LastSaved,
		AutoSaveFailed: sess.autoSaveFailed,
	}
	if !p.Completed {
		q, err := s.graph.Question(p.CurrentQuestionID)
		if err != nil {
			return nil, err
		}
		view.CurrentQuestion = &q
		view.CurrentSection = q.Section
	}
	return view, nil
}

func (s *SessionService) publish(sess *session, eventType, questionID string, answers flow.Answers) {
	if s.publisher == nil {
		return
	}
	pct, _ := s.graph.ProgressPercentage(sess.progress.Answers)
	ev := &event.QuestionnaireEvent{
		EventType:  eventType,
		SessionID:  sess.record.ID,
		UserID:     sess.record.UserID,
		QuestionID: questionID,
		Progress:   pct,
		Timestamp:  s.clock.Now().Unix(),
		Answers:    answers,
	}
	if err := s.publisher.PublishQuestionnaireEvent(ev); err != nil {
		log.Printf("Failed to publish %s for session %s: %v", eventType, sess.record.ID, err)
	}
}

func (s *SessionService) publishError(sess *session, questionID string, cause error) {
	if s.publisher == nil {
		return
	}
	ev := &event.QuestionnaireEvent{
		EventType:  event.EventTypeFlowError,
		SessionID:  sess.record.ID,
		UserID:     sess.record.UserID,
		QuestionID: questionID,
		Timestamp:  s.clock.Now().Unix(),
		Error:      cause.Error(),
	}
	if err := s.publisher.PublishQuestionnaireEvent(ev); err != nil {
		log.Printf("Failed to publish %s for session %s: %v", ev.EventType, sess.record.ID, err)
	}
}

func countResolutionError(err error) {
	var nf *flow.NotFoundError
	if errors.As(err, &nf) {
		metrics.ResolutionErrors.WithLabelValues("not_found").Inc()
		return
	}
	metrics.ResolutionErrors.WithLabelValues("branching").Inc()
}
