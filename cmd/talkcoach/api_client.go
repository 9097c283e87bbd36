package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"talkcoach/internal/config"
)

// apiClient is a thin wrapper over the daemon's HTTP status API.
type apiClient struct {
	baseURL string
	client  *http.Client
}

type daemonStatus struct {
	Running      bool   `json:"running"`
	Artifacts    int    `json:"artifacts"`
	Pending      int    `json:"pending"`
	Processing   int    `json:"processing"`
	Completed    int    `json:"completed"`
	Failed       int    `json:"failed"`
	QueuePending int    `json:"queue_pending"`
	DatabasePath string `json:"database_path"`
	LockFilePath string `json:"lock_file_path"`
}

// dialAPI probes the daemon status endpoint and returns a client when a
// daemon is listening, nil otherwise.
func dialAPI(cfg *config.Config) *apiClient {
	if cfg == nil {
		return nil
	}
	base := apiBaseURL(cfg.Paths.APIBind)
	if base == "" {
		return nil
	}
	api := &apiClient{
		baseURL: base,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	if _, err := api.Status(); err != nil {
		return nil
	}
	return api
}

func apiBaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (a *apiClient) Status() (*daemonStatus, error) {
	var status daemonStatus
	if err := a.get("/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *apiClient) Regenerate(artifactID, stage string) error {
	endpoint := fmt.Sprintf("%s/api/artifacts/%s/regenerate?stage=%s",
		a.baseURL, url.PathEscape(artifactID), url.QueryEscape(stage))
	resp, err := a.client.Post(endpoint, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request regeneration: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon rejected regeneration: %s", readAPIError(resp.Body, resp.Status))
	}
	return nil
}

func (a *apiClient) get(path string, target any) error {
	resp, err := a.client.Get(a.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon API returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func readAPIError(body io.Reader, fallback string) string {
	payload, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return fallback
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fallback
}
