package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"questionnaire-service/internal/catalog"
	"questionnaire-service/internal/flow"
	"questionnaire-service/internal/models"
	"questionnaire-service/internal/repository"
	"questionnaire-service/internal/service"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, g *flow.Graph) *gin.Engine {
	t.Helper()
	if g == nil {
		var err error
		g, err = catalog.Default()
		if err != nil {
			t.Fatalf("Failed to load questionnaire: %v", err)
		}
	}
	svc := service.NewSessionService(g, repository.NewMemoryStore(), nil, service.Options{})
	return NewRouter(svc, nil)
}

func do(t *testing.T, r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return out
}

var story = strings.Repeat("My first job was fixing bikes for neighbours. ", 2)

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestPublicQuestions(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(t, r, http.MethodGet, "/public/questionnaire/questions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode[struct {
		Start     string          `json:"start"`
		Questions []flow.Question `json:"questions"`
		Total     int             `json:"total"`
	}](t, w)
	if body.Start != "early_experiences" || body.Total != 18 || len(body.Questions) != 18 {
		t.Errorf("Unexpected graph listing: start=%s total=%d", body.Start, body.Total)
	}
}

func TestPublicResolve(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantNext string
	}{
		{
			name:     "computed branch",
			body:     models.ResolveRequest{QuestionID: "digital_literacy", Answers: flow.Answers{"digital_literacy": 5}},
			wantCode: http.StatusOK,
			wantNext: "advanced_tech_skills",
		},
		{
			name:     "mapped default",
			body:     models.ResolveRequest{QuestionID: "market_size", Answers: flow.Answers{"market_size": "National"}},
			wantCode: http.StatusOK,
			wantNext: "work_style",
		},
		{
			name:     "unknown question",
			body:     models.ResolveRequest{QuestionID: "nope"},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "missing question id",
			body:     map[string]any{"answers": map[string]any{}},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/public/questionnaire/resolve", "", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[models.ResolveResponse](t, w)
			if resp.NextQuestionID != tt.wantNext {
				t.Errorf("Expected next %s, got %s", tt.wantNext, resp.NextQuestionID)
			}
		})
	}
}

func TestPublicProgress(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(t, r, http.MethodPost, "/public/questionnaire/progress", "",
		models.ProgressRequest{Answers: flow.Answers{"early_experiences": story}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decode[models.ProgressResponse](t, w)
	if resp.Progress <= 0 || resp.LastCheckpoint != "early_experiences" {
		t.Errorf("Unexpected progress: %+v", resp)
	}
}

func TestSession_RequiresUser(t *testing.T) {
	r := newTestRouter(t, nil)
	w := do(t, r, http.MethodPost, "/protected/questionnaire/session", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(t, r, http.MethodPost, "/protected/questionnaire/session", "u1", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	view := decode[models.SessionView](t, w)
	base := "/protected/questionnaire/session/" + view.SessionID

	w = do(t, r, http.MethodPost, "/protected/questionnaire/session", "u1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected resume with 200, got %d", w.Code)
	}

	w = do(t, r, http.MethodGet, base, "u2", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's session, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, base+"/answer", "u1", models.AnswerRequest{QuestionID: "early_experiences", Answer: "too short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a short answer, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, base+"/answer", "u1", models.AnswerRequest{QuestionID: "early_experiences", Answer: story})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	view = decode[models.SessionView](t, w)
	if view.CurrentQuestion == nil || view.CurrentQuestion.ID != "education" {
		t.Fatalf("Expected education next, got %+v", view.CurrentQuestion)
	}

	w = do(t, r, http.MethodPost, base+"/autosave", "u1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from autosave, got %d", w.Code)
	}
	saved := decode[map[string]any](t, w)
	if saved["autosave_failed"] != false {
		t.Errorf("Expected autosave_failed=false, got %v", saved["autosave_failed"])
	}

	w = do(t, r, http.MethodGet, base+"/checkpoints", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	cps := decode[struct {
		Checkpoints []models.CheckpointView `json:"checkpoints"`
		Total       int                     `json:"total"`
	}](t, w)
	if cps.Total == 0 {
		t.Error("Expected at least one checkpoint")
	}

	w = do(t, r, http.MethodPost, base+"/checkpoints/early_experiences/restore", "u1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from restore, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, base+"/checkpoints/market_size/restore", "u1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing checkpoint, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, base+"/finalize", "u1", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 before completion, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, base+"/restart", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from restart, got %d", w.Code)
	}
	view = decode[models.SessionView](t, w)
	if view.CurrentQuestion.ID != "early_experiences" || len(view.Answers) != 0 {
		t.Errorf("Expected a fresh start, got %+v", view)
	}
}

func TestSession_BranchingErrorAsksForRestart(t *testing.T) {
	reg := flow.NewRegistry()
	reg.RegisterFunc("broken", func(_ any, _ flow.Answers) (string, error) {
		return "", errors.New("scoring table missing")
	})
	g, err := flow.LoadGraph([]byte(`
start: first
questions:
  - id: first
    section: One
    text: Pick one
    type: choice
    options: [a, b]
    next:
      kind: computed
      func: broken
      targets: [second]
  - id: second
    section: One
    text: Done?
    type: yes-no
`), reg)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	r := newTestRouter(t, g)

	w := do(t, r, http.MethodPost, "/protected/questionnaire/session", "u1", nil)
	view := decode[models.SessionView](t, w)

	w = do(t, r, http.MethodPost, "/protected/questionnaire/session/"+view.SessionID+"/answer", "u1",
		models.AnswerRequest{QuestionID: "first", Answer: "a"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
	body := decode[map[string]string](t, w)
	if body["error"] != restartMessage {
		t.Errorf("Unexpected message %q", body["error"])
	}
}

func TestSession_CompleteAndFinalize(t *testing.T) {
	g, err := flow.LoadGraph([]byte(`
start: only
questions:
  - id: only
    section: One
    text: Ready?
    type: like-dislike
`), flow.NewRegistry())
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	r := newTestRouter(t, g)

	w := do(t, r, http.MethodPost, "/protected/questionnaire/session", "u1", nil)
	view := decode[models.SessionView](t, w)
	base := "/protected/questionnaire/session/" + view.SessionID

	w = do(t, r, http.MethodPost, base+"/answer", "u1", models.AnswerRequest{QuestionID: "only", Answer: "like"})
	view = decode[models.SessionView](t, w)
	if !view.Completed || view.Progress != 100 {
		t.Fatalf("Expected completion, got %+v", view)
	}

	w = do(t, r, http.MethodPost, base+"/finalize", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, base, "u1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected finalized session to be gone, got %d", w.Code)
	}
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &flow.ValidationError{QuestionID: "q", Reason: "too short"}, http.StatusBadRequest},
		{"unknown question", &flow.NotFoundError{QuestionID: "q"}, http.StatusNotFound},
		{"branch function failed", &flow.BranchingError{QuestionID: "q", Err: errors.New("boom")}, http.StatusUnprocessableEntity},
		{"skip cycle", &flow.BranchingError{QuestionID: "q", Err: flow.ErrCycle}, http.StatusUnprocessableEntity},
		{"session not found", service.ErrSessionNotFound, http.StatusNotFound},
		{"no checkpoint", service.ErrNoProgress, http.StatusNotFound},
		{"not completed", service.ErrNotCompleted, http.StatusConflict},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d (%s)", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}
