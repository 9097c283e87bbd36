package testsupport

import (
	"context"
	"testing"

	"talkcoach/internal/config"
	"talkcoach/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewConversation creates a conversation artifact for tests using the provided store.
func NewConversation(t testing.TB, store *ledger.Store, title, audioPath string, stages []string) *ledger.Artifact {
	t.Helper()

	artifact, err := store.Create(context.Background(), ledger.NewArtifactParams{
		Kind:        ledger.KindConversation,
		Title:       title,
		SourceReady: audioPath != "",
		AudioPath:   audioPath,
		Stages:      stages,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return artifact
}

// NewInterview creates an interview artifact for tests using the provided store.
func NewInterview(t testing.TB, store *ledger.Store, title string, answers []string, stages []string) *ledger.Artifact {
	t.Helper()

	artifact, err := store.Create(context.Background(), ledger.NewArtifactParams{
		Kind:        ledger.KindInterview,
		Title:       title,
		SourceReady: len(answers) > 0,
		AnswerAudio: answers,
		Stages:      stages,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return artifact
}
