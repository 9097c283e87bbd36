package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"talkcoach/internal/driver"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/scheduler"
	"talkcoach/internal/testsupport"
)

func apiFixture(t *testing.T) (*apiServer, *ledger.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	def := func(name string, deps ...string) pipeline.Definition {
		return pipeline.Definition{
			Kind:         ledger.KindConversation,
			Name:         name,
			Dependencies: deps,
			BuildInput:   func(*ledger.Artifact) (any, error) { return name, nil },
			Invoke: func(context.Context, any) (json.RawMessage, error) {
				return json.RawMessage(`{"text":"ok"}`), nil
			},
		}
	}
	registry, err := pipeline.NewRegistry(def("transcription"), def("recap", "transcription"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	queue := scheduler.NewQueue(store)
	drv := driver.New(cfg, store, registry, queue, logging.NewNop())
	executor := pipeline.NewExecutor(store, registry, drv, logging.NewNop())
	workers := scheduler.NewWorkers(cfg, queue, executor, logging.NewNop())

	d, err := New(cfg, store, queue, drv, workers, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.api, store
}

func TestAPIServerStatus(t *testing.T) {
	srv, store := apiFixture(t)
	testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription", "recap"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp statusView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Artifacts != 1 || resp.Pending != 2 {
		t.Fatalf("unexpected status counts: %+v", resp)
	}
}

func TestAPIServerArtifactDetail(t *testing.T) {
	srv, store := apiFixture(t)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription", "recap"})

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+artifact.ID, nil)
	w := httptest.NewRecorder()
	srv.handleArtifact(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp artifactView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != artifact.ID || len(resp.Stages) != 2 {
		t.Fatalf("unexpected artifact view: %+v", resp)
	}
	if resp.Stages["transcription"].Status != "pending" {
		t.Fatalf("expected pending transcription, got %+v", resp.Stages["transcription"])
	}
}

func TestAPIServerArtifactNotFound(t *testing.T) {
	srv, _ := apiFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/nope", nil)
	w := httptest.NewRecorder()
	srv.handleArtifact(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerRegenerate(t *testing.T) {
	srv, store := apiFixture(t)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription", "recap"})

	ctx := context.Background()
	result := json.RawMessage(`{"text":"ok"}`)
	for _, name := range []string{"transcription", "recap"} {
		if err := store.SetStage(ctx, artifact.ID, name, ledger.StatusCompleted, result, ""); err != nil {
			t.Fatalf("SetStage: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/artifacts/"+artifact.ID+"/regenerate?stage=recap", nil)
	w := httptest.NewRecorder()
	srv.handleArtifact(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	after, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state, _ := after.Stage("recap"); state.Status != ledger.StatusPending {
		t.Fatalf("expected recap re-armed, got %s", state.Status)
	}
	if !after.StageCompleted("transcription") {
		t.Fatal("transcription should keep its result")
	}
}

func TestAPIServerRegenerateRequiresStage(t *testing.T) {
	srv, store := apiFixture(t)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	req := httptest.NewRequest(http.MethodPost, "/api/artifacts/"+artifact.ID+"/regenerate", nil)
	w := httptest.NewRecorder()
	srv.handleArtifact(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
