package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"questionnaire-service/internal/flow"

	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	store, err := NewSQLiteStore(context.Background(), conn)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestStores_Contract(t *testing.T) {
	stores := map[string]func(t *testing.T) flow.Store{
		"memory": func(t *testing.T) flow.Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) flow.Store { return newSQLiteStore(t) },
		"scoped": func(t *testing.T) flow.Store { return NewScopedStore(NewMemoryStore(), "questionnaire", "s1") },
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			if _, found, err := store.Get(ctx, "missing"); err != nil || found {
				t.Fatalf("Expected missing key to be not found, got found=%v err=%v", found, err)
			}

			if err := store.Set(ctx, "progress", `{"a":1}`); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := store.Set(ctx, "progress", `{"a":2}`); err != nil {
				t.Fatalf("Overwrite failed: %v", err)
			}
			value, found, err := store.Get(ctx, "progress")
			if err != nil || !found {
				t.Fatalf("Expected stored value, got found=%v err=%v", found, err)
			}
			if value != `{"a":2}` {
				t.Errorf("Expected last written value, got %s", value)
			}

			if err := store.Delete(ctx, "progress"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, found, _ := store.Get(ctx, "progress"); found {
				t.Error("Expected key to be gone after delete")
			}
			if err := store.Delete(ctx, "progress"); err != nil {
				t.Errorf("Deleting a missing key should not fail: %v", err)
			}
		})
	}
}

func TestScopedStore_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	a := NewScopedStore(base, "questionnaire", "a")
	b := NewScopedStore(base, "questionnaire", "b")

	if err := a.Set(ctx, flow.DefaultProgressKey, "A"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found, _ := b.Get(ctx, flow.DefaultProgressKey); found {
		t.Error("Session b should not see session a's progress")
	}
	if v, found, _ := base.Get(ctx, "questionnaire:a:"+flow.DefaultProgressKey); !found || v != "A" {
		t.Errorf("Expected prefixed key in base store, got %q found=%v", v, found)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"questionnaire", "user", "u1"}, "questionnaire:user:u1"},
		{[]string{"", "user", "u1"}, "user:u1"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	if err := store.Set(ctx, "k", "v"); err == nil {
		t.Error("Expected error on cancelled context")
	}
	if store.Len() != 0 {
		t.Errorf("Expected nothing written, got %d keys", store.Len())
	}
}
