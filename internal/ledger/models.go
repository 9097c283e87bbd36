package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// TimeFormat is the timestamp representation stored in the database.
// Unlike RFC3339Nano it never trims trailing zeros, so the lexicographic
// comparisons SQL performs on timestamp columns order correctly within a
// second. All stored times are UTC.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Status represents the lifecycle of one stage of one artifact.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status can no longer change without a re-arm.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind selects which stage graph applies to an artifact.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindInterview    Kind = "interview"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindConversation, KindInterview:
		return normalized, true
	}
	return "", false
}

// StageState holds the ledger entry for one stage of one artifact. Result is
// present exactly when Status is StatusCompleted.
type StageState struct {
	Status       Status
	Result       json.RawMessage
	ErrorMessage string
	UpdatedAt    time.Time
}

// Artifact is one conversation or interview being enriched by the pipeline.
type Artifact struct {
	ID          string
	Kind        Kind
	Title       string
	SourceReady bool
	AudioPath   string
	AnswerAudio []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Stages      map[string]StageState
}

// Stage returns the ledger entry for the named stage.
func (a *Artifact) Stage(name string) (StageState, bool) {
	state, ok := a.Stages[name]
	return state, ok
}

// StageCompleted reports whether the named stage reached StatusCompleted.
func (a *Artifact) StageCompleted(name string) bool {
	state, ok := a.Stages[name]
	return ok && state.Status == StatusCompleted
}

// HealthSummary describes aggregated stage counts across all artifacts.
type HealthSummary struct {
	Artifacts  int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
