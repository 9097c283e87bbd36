package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying stage failures. Stage code wraps errors with
// one of these so the executor and status surfaces can report the failure
// class without string matching.
var (
	// ErrMissingSource marks artifacts whose raw audio never arrived.
	ErrMissingSource = errors.New("missing source")
	// ErrDependency marks stages whose prerequisite is not completed.
	ErrDependency = errors.New("dependency not satisfied")
	// ErrInvalidInput marks upstream results that are missing or malformed,
	// detected before any external call is spent.
	ErrInvalidInput = errors.New("invalid adapter input")
	// ErrAdapter marks inference calls that errored or returned an
	// empty/invalid result.
	ErrAdapter = errors.New("adapter failure")
	// ErrConfiguration marks missing credentials or unusable settings.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrAdapter
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for a stage error, suitable for
// status output and structured logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingSource):
		return "missing_source"
	case errors.Is(err, ErrDependency):
		return "dependency"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "adapter"
	}
}

// Message extracts a trimmed human-readable message from a stage error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
