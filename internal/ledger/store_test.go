package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"talkcoach/internal/ledger"
	"talkcoach/internal/testsupport"
)

var conversationStages = []string{"transcription", "recap", "summary", "analysis", "coaching"}

func TestCreateSeedsAllStagesPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	artifact := testsupport.NewConversation(t, store, "Weekly sync", "/audio/weekly.m4a", conversationStages)
	if artifact.ID == "" {
		t.Fatal("expected artifact ID to be assigned")
	}
	if !artifact.SourceReady {
		t.Fatal("expected source_ready")
	}
	if len(artifact.Stages) != len(conversationStages) {
		t.Fatalf("expected %d stages, got %d", len(conversationStages), len(artifact.Stages))
	}
	for name, state := range artifact.Stages {
		if state.Status != ledger.StatusPending {
			t.Fatalf("stage %s not pending: %s", name, state.Status)
		}
		if state.Result != nil {
			t.Fatalf("stage %s has result while pending", name)
		}
	}
}

func TestGetMissingArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Get(context.Background(), "no-such-id"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStageCouplesResultToCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Coupling", "/a.m4a", conversationStages)

	result := json.RawMessage(`{"text":"hello"}`)
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusCompleted, result, ""); err != nil {
		t.Fatalf("SetStage completed: %v", err)
	}

	fetched, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state := fetched.Stages["transcription"]
	if state.Status != ledger.StatusCompleted || string(state.Result) != `{"text":"hello"}` {
		t.Fatalf("unexpected state: %+v", state)
	}

	// Completed without a result is rejected outright.
	if err := store.SetStage(ctx, artifact.ID, "recap", ledger.StatusCompleted, nil, ""); err == nil {
		t.Fatal("expected error for completed stage without result")
	}

	// Any non-completed status clears the result.
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusFailed, result, "boom"); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	fetched, err = store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state = fetched.Stages["transcription"]
	if state.Result != nil {
		t.Fatal("failed stage must not keep a result")
	}
	if state.ErrorMessage != "boom" {
		t.Fatalf("expected error message, got %q", state.ErrorMessage)
	}
}

func TestSetStageUnknownStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	artifact := testsupport.NewConversation(t, store, "Unknown", "/a.m4a", conversationStages)
	err := store.SetStage(context.Background(), artifact.ID, "nonexistent", ledger.StatusFailed, nil, "x")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stage, got %v", err)
	}
}

func TestClaimStageIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Claim", "/a.m4a", conversationStages)

	claimed, err := store.ClaimStage(ctx, artifact.ID, "transcription")
	if err != nil {
		t.Fatalf("ClaimStage: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should win")
	}

	claimed, err = store.ClaimStage(ctx, artifact.ID, "transcription")
	if err != nil {
		t.Fatalf("ClaimStage second: %v", err)
	}
	if claimed {
		t.Fatal("second claim must lose while first run is processing")
	}

	fetched, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Stages["transcription"].Status != ledger.StatusProcessing {
		t.Fatalf("expected processing, got %s", fetched.Stages["transcription"].Status)
	}
}

func TestResetStagesClearsResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Reset", "/a.m4a", conversationStages)
	for _, stage := range []string{"transcription", "recap", "summary"} {
		if err := store.SetStage(ctx, artifact.ID, stage, ledger.StatusCompleted, json.RawMessage(`{"text":"t"}`), ""); err != nil {
			t.Fatalf("SetStage %s: %v", stage, err)
		}
	}

	if err := store.ResetStages(ctx, artifact.ID, "recap", "summary"); err != nil {
		t.Fatalf("ResetStages: %v", err)
	}

	fetched, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Stages["transcription"].Status != ledger.StatusCompleted {
		t.Fatal("untouched stage must keep its state")
	}
	for _, stage := range []string{"recap", "summary"} {
		state := fetched.Stages[stage]
		if state.Status != ledger.StatusPending || state.Result != nil || state.ErrorMessage != "" {
			t.Fatalf("stage %s not fully re-armed: %+v", stage, state)
		}
	}
}

func TestFailStagesOnlyTouchesPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Cascade", "/a.m4a", conversationStages)
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusCompleted, json.RawMessage(`{"text":"t"}`), ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	failed, err := store.FailStages(ctx, artifact.ID, "upstream stage recap failed", "transcription", "summary", "analysis")
	if err != nil {
		t.Fatalf("FailStages: %v", err)
	}
	if failed != 2 {
		t.Fatalf("expected 2 transitions, got %d", failed)
	}

	fetched, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Stages["transcription"].Status != ledger.StatusCompleted {
		t.Fatal("completed stage must not be retroactively failed")
	}
	for _, stage := range []string{"summary", "analysis"} {
		if fetched.Stages[stage].Status != ledger.StatusFailed {
			t.Fatalf("stage %s not failed", stage)
		}
	}
}

func TestDeleteCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Delete", "/a.m4a", conversationStages)
	if err := store.Delete(ctx, artifact.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, artifact.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, artifact.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Health", "/a.m4a", conversationStages)
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusCompleted, json.RawMessage(`{"text":"t"}`), ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	if err := store.SetStage(ctx, artifact.ID, "recap", ledger.StatusFailed, nil, "x"); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Artifacts != 1 || summary.Completed != 1 || summary.Failed != 1 || summary.Pending != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestReleaseStageOnlyMovesProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	artifact := testsupport.NewConversation(t, store, "Release", "/a.m4a", conversationStages)

	if _, err := store.ClaimStage(ctx, artifact.ID, "transcription"); err != nil {
		t.Fatalf("ClaimStage: %v", err)
	}
	released, err := store.ReleaseStage(ctx, artifact.ID, "transcription")
	if err != nil {
		t.Fatalf("ReleaseStage: %v", err)
	}
	if !released {
		t.Fatal("processing stage should be released")
	}
	fetched, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Stages["transcription"].Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", fetched.Stages["transcription"].Status)
	}

	// Terminal outcomes stay put.
	if _, err := store.ClaimStage(ctx, artifact.ID, "transcription"); err != nil {
		t.Fatalf("ClaimStage again: %v", err)
	}
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusCompleted, []byte(`{"text":"done"}`), ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	released, err = store.ReleaseStage(ctx, artifact.ID, "transcription")
	if err != nil {
		t.Fatalf("ReleaseStage completed: %v", err)
	}
	if released {
		t.Fatal("completed stage must not be released")
	}
	fetched, err = store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get after release: %v", err)
	}
	if fetched.Stages["transcription"].Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Stages["transcription"].Status)
	}
}
