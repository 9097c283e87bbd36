package scheduler_test

import (
	"context"
	"testing"
	"time"

	"talkcoach/internal/ledger"
	"talkcoach/internal/scheduler"
	"talkcoach/internal/testsupport"
)

func TestScheduleAndNext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	jobID, err := queue.Schedule(ctx, artifact.ID, "transcription", 0)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if jobID == 0 {
		t.Fatal("expected non-zero job id")
	}

	job, err := queue.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if job == nil {
		t.Fatal("expected a due job")
	}
	if job.ID != jobID || job.ArtifactID != artifact.ID || job.Stage != "transcription" {
		t.Fatalf("unexpected job: %+v", job)
	}

	// The claim is exclusive until released or finished.
	second, err := queue.Next(ctx)
	if err != nil {
		t.Fatalf("Next after claim: %v", err)
	}
	if second != nil {
		t.Fatalf("claimed job handed out twice: %+v", second)
	}

	if err := queue.Finish(ctx, job.ID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	pending, err := queue.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected empty queue, got %d pending", pending)
	}
}

func TestScheduleValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queue := scheduler.NewQueue(store)

	if _, err := queue.Schedule(context.Background(), "", "transcription", 0); err == nil {
		t.Fatal("expected error for empty artifact id")
	}
	if _, err := queue.Schedule(context.Background(), "abc", "", 0); err == nil {
		t.Fatal("expected error for empty stage")
	}
}

func TestNextHonorsRunAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", time.Hour); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	job, err := queue.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if job != nil {
		t.Fatalf("job due an hour from now was handed out: %+v", job)
	}
}

func TestNextReturnsEarliestDue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription", "recap"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "recap", -time.Minute); err != nil {
		t.Fatalf("Schedule recap: %v", err)
	}
	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", -time.Hour); err != nil {
		t.Fatalf("Schedule transcription: %v", err)
	}

	job, err := queue.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if job == nil || job.Stage != "transcription" {
		t.Fatalf("expected transcription first, got %+v", job)
	}
}

func TestReleaseStaleReturnsJobToPool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	job, err := queue.Next(ctx)
	if err != nil || job == nil {
		t.Fatalf("Next: job=%v err=%v", job, err)
	}

	// A cutoff in the future treats the fresh claim as stale.
	released, err := queue.ReleaseStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReleaseStale: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released job, got %d", released)
	}

	again, err := queue.Next(ctx)
	if err != nil {
		t.Fatalf("Next after release: %v", err)
	}
	if again == nil || again.ID != job.ID {
		t.Fatalf("expected released job back, got %+v", again)
	}
}

func TestReleaseStaleLeavesFreshClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if job, err := queue.Next(ctx); err != nil || job == nil {
		t.Fatalf("Next: job=%v err=%v", job, err)
	}

	released, err := queue.ReleaseStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReleaseStale: %v", err)
	}
	if released != 0 {
		t.Fatalf("fresh claim released, got %d", released)
	}
}

func TestReleaseStaleReArmsAbandonedStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	job, err := queue.Next(ctx)
	if err != nil || job == nil {
		t.Fatalf("Next: job=%v err=%v", job, err)
	}
	// The worker claims the stage and dies before writing an outcome.
	if claimed, err := store.ClaimStage(ctx, artifact.ID, "transcription"); err != nil || !claimed {
		t.Fatalf("ClaimStage: claimed=%v err=%v", claimed, err)
	}

	released, err := queue.ReleaseStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReleaseStale: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released job, got %d", released)
	}

	// The replay must find the stage runnable again, not wedged in
	// processing behind the executor's pending guard.
	loaded, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state, _ := loaded.Stage("transcription")
	if state.Status != ledger.StatusPending {
		t.Fatalf("abandoned stage not re-armed: status=%s", state.Status)
	}

	again, err := queue.Next(ctx)
	if err != nil || again == nil || again.ID != job.ID {
		t.Fatalf("Next after release: job=%v err=%v", again, err)
	}
	if claimed, err := store.ClaimStage(ctx, artifact.ID, "transcription"); err != nil || !claimed {
		t.Fatalf("replayed run could not claim the stage: claimed=%v err=%v", claimed, err)
	}
}

func TestReleaseStaleKeepsTerminalOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	if _, err := queue.Schedule(ctx, artifact.ID, "transcription", 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if job, err := queue.Next(ctx); err != nil || job == nil {
		t.Fatalf("Next: job=%v err=%v", job, err)
	}
	// The worker finished the stage but died before removing the job.
	if claimed, err := store.ClaimStage(ctx, artifact.ID, "transcription"); err != nil || !claimed {
		t.Fatalf("ClaimStage: claimed=%v err=%v", claimed, err)
	}
	if err := store.SetStage(ctx, artifact.ID, "transcription", ledger.StatusCompleted, []byte(`{"text":"hello"}`), ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	if _, err := queue.ReleaseStale(ctx, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("ReleaseStale: %v", err)
	}

	loaded, err := store.Get(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state, _ := loaded.Stage("transcription")
	if state.Status != ledger.StatusCompleted {
		t.Fatalf("completed stage lost its outcome: status=%s", state.Status)
	}
}

func TestNextOrdersJobsWithinOneSecond(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifact := testsupport.NewConversation(t, store, "standup", "/audio/standup.wav", []string{"transcription", "recap"})

	queue := scheduler.NewQueue(store)
	ctx := context.Background()

	// Whole-second and mid-second run-at values in the same past second;
	// the stored format is fixed width so the string comparison in SQL
	// must put the whole second first.
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	insert := func(stage string, runAt time.Time) {
		_, err := store.DB().ExecContext(
			ctx,
			`INSERT INTO stage_jobs (artifact_id, stage, run_at, created_at) VALUES (?, ?, ?, ?)`,
			artifact.ID,
			stage,
			runAt.Format(ledger.TimeFormat),
			runAt.Format(ledger.TimeFormat),
		)
		if err != nil {
			t.Fatalf("insert job: %v", err)
		}
	}
	insert("recap", base.Add(500*time.Millisecond))
	insert("transcription", base)

	job, err := queue.Next(ctx)
	if err != nil || job == nil {
		t.Fatalf("Next: job=%v err=%v", job, err)
	}
	if job.Stage != "transcription" {
		t.Fatalf("whole-second job ordered after mid-second job: got %s", job.Stage)
	}
}
