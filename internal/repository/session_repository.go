package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"questionnaire-service/internal/flow"
	"questionnaire-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// SessionRepository keeps session records and the user -> active session
// index in the same key-value store as the engine state.
type SessionRepository struct {
	store  flow.Store
	prefix string
}

func NewSessionRepository(store flow.Store, prefix string) *SessionRepository {
	return &SessionRepository{store: store, prefix: prefix}
}

// Store returns the key space for one session's progress and checkpoints.
func (r *SessionRepository) Store(sessionID string) flow.Store {
	return NewScopedStore(r.store, r.prefix, sessionID)
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.QuestionnaireSession, error) {
	raw, found, err := r.store.Get(ctx, Key(r.prefix, "session", id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	var session models.QuestionnaireSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *models.QuestionnaireSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, Key(r.prefix, "session", session.ID), string(data))
}

// FindActiveID returns the id of the user's open session.
func (r *SessionRepository) FindActiveID(ctx context.Context, userID string) (string, error) {
	id, found, err := r.store.Get(ctx, Key(r.prefix, "user", userID))
	if err != nil {
		return "", err
	}
	if !found || id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (r *SessionRepository) SetActive(ctx context.Context, userID, sessionID string) error {
	return r.store.Set(ctx, Key(r.prefix, "user", userID), sessionID)
}

func (r *SessionRepository) ClearActive(ctx context.Context, userID string) error {
	return r.store.Delete(ctx, Key(r.prefix, "user", userID))
}
