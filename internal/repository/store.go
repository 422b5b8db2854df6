package repository

import (
	"context"
	"strings"

	"questionnaire-service/internal/flow"
)

// ScopedStore prefixes every key of an underlying store, so that sessions
// sharing one backend keep separate progress and checkpoint entries.
type ScopedStore struct {
	base   flow.Store
	prefix string
}

func NewScopedStore(base flow.Store, parts ...string) *ScopedStore {
	return &ScopedStore{base: base, prefix: Key(parts...) + ":"}
}

// Key joins non-empty key segments with ':'.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.base.Delete(ctx, s.prefix+key)
}
