package services_test

import (
	"errors"
	"strings"
	"testing"

	"talkcoach/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	cause := errors.New("boom")
	err := services.Wrap(services.ErrAdapter, "recap", "invoke", "chat completion failed", cause)
	if !errors.Is(err, services.ErrAdapter) {
		t.Fatalf("expected adapter marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive")
	}
	if !strings.Contains(err.Error(), "recap: invoke: chat completion failed") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "summary", "", "no detail", nil)
	if !errors.Is(err, services.ErrAdapter) {
		t.Fatalf("expected default adapter marker, got %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		marker error
		want   string
	}{
		{services.ErrMissingSource, "missing_source"},
		{services.ErrDependency, "dependency"},
		{services.ErrInvalidInput, "invalid_input"},
		{services.ErrConfiguration, "configuration"},
		{services.ErrAdapter, "adapter"},
		{errors.New("untagged"), "adapter"},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if got := services.Kind(err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.marker, got, tc.want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}
