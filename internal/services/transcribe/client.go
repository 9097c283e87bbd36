package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talkcoach/internal/config"
	"talkcoach/internal/language"
)

const (
	transcribePath     = "/audio/transcriptions"
	defaultHTTPTimeout = 10 * time.Minute
)

// Client transcribes one audio file into text.
type Client interface {
	Transcribe(ctx context.Context, req Request) (Response, error)
}

// Request describes the audio to transcribe.
type Request struct {
	FilePath string
	Language string
	Model    string
}

// Response mirrors the subset of the speech-to-text API response the
// pipeline needs.
type Response struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient builds a speech-to-text client for an OpenAI-compatible
// transcription endpoint from the transcription configuration section.
func NewClient(cfg config.Transcription) Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &httpClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:   strings.TrimSpace(cfg.Model),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP is like NewClient with an explicit HTTP client, used by
// tests.
func NewClientWithHTTP(cfg config.Transcription, hc *http.Client) Client {
	client := NewClient(cfg).(*httpClient)
	if hc != nil {
		client.http = hc
	}
	return client
}

func (c *httpClient) Transcribe(ctx context.Context, req Request) (Response, error) {
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return Response{}, fmt.Errorf("transcribe client: file path required")
	}
	if c.apiKey == "" {
		return Response{}, fmt.Errorf("transcribe client: api key required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return Response{}, fmt.Errorf("transcribe client: model required")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Response{}, fmt.Errorf("transcribe client: open audio: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", model); err != nil {
		return Response{}, fmt.Errorf("transcribe client: write model field: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return Response{}, fmt.Errorf("transcribe client: write language field: %w", err)
		}
	}
	field, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return Response{}, fmt.Errorf("transcribe client: create file field: %w", err)
	}
	if _, err := io.Copy(field, file); err != nil {
		return Response{}, fmt.Errorf("transcribe client: copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Response{}, fmt.Errorf("transcribe client: close multipart writer: %w", err)
	}

	endpoint := c.baseURL + transcribePath
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("transcribe client: build request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(request)
	if err != nil {
		return Response{}, fmt.Errorf("transcribe client: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("transcribe client: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, fmt.Errorf("transcribe client: http %d: %s", resp.StatusCode, summarizeBody(payload))
	}

	var decoded Response
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Response{}, fmt.Errorf("transcribe client: decode response: %w", err)
	}
	decoded.Text = strings.TrimSpace(decoded.Text)
	decoded.Language = language.Normalize(decoded.Language)
	return decoded, nil
}

func summarizeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "<empty>"
	}
	text = strings.Join(strings.Fields(text), " ")
	const limit = 200
	if len(text) > limit {
		text = text[:limit] + "..."
	}
	return text
}
