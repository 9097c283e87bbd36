package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"talkcoach/internal/config"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answer-1.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	audioPath := writeAudioFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Fatalf("unexpected model field %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "answer-1.wav" {
			t.Fatalf("unexpected filename %q", header.Filename)
		}
		_ = json.NewEncoder(w).Encode(Response{Text: "  hello from the recording  ", Language: "english", Duration: 4.2})
	}))
	defer server.Close()

	client := NewClient(config.Transcription{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "whisper-large-v3",
	})
	resp, err := client.Transcribe(context.Background(), Request{FilePath: audioPath})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if resp.Text != "hello from the recording" {
		t.Fatalf("expected trimmed text, got %q", resp.Text)
	}
	if resp.Language != "en" {
		t.Fatalf("expected normalized language, got %q", resp.Language)
	}
	if resp.Duration != 4.2 {
		t.Fatalf("unexpected duration %v", resp.Duration)
	}
}

func TestTranscribeHTTPErrorIncludesBody(t *testing.T) {
	audioPath := writeAudioFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported format"})
	}))
	defer server.Close()

	client := NewClient(config.Transcription{APIKey: "test-key", BaseURL: server.URL, Model: "whisper-large-v3"})
	_, err := client.Transcribe(context.Background(), Request{FilePath: audioPath})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 400") || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	client := NewClient(config.Transcription{APIKey: "test-key", BaseURL: "http://localhost", Model: "whisper-large-v3"})
	_, err := client.Transcribe(context.Background(), Request{FilePath: "/does/not/exist.wav"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := NewClient(config.Transcription{BaseURL: "http://localhost", Model: "whisper-large-v3"})
	_, err := client.Transcribe(context.Background(), Request{FilePath: "whatever.wav"})
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}
