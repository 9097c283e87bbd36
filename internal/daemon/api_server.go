package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"talkcoach/internal/config"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type artifactStageView struct {
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type artifactView struct {
	ID          string                       `json:"id"`
	Kind        string                       `json:"kind"`
	Title       string                       `json:"title"`
	SourceReady bool                         `json:"source_ready"`
	AudioPath   string                       `json:"audio_path,omitempty"`
	AnswerAudio []string                     `json:"answer_audio,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	Stages      map[string]artifactStageView `json:"stages"`
}

type statusView struct {
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

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/artifacts", srv.handleArtifacts)
	mux.HandleFunc("/api/artifacts/", srv.handleArtifact)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address, for tests that bind port zero.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, statusView{
		Running:      status.Running,
		Artifacts:    status.Ledger.Artifacts,
		Pending:      status.Ledger.Pending,
		Processing:   status.Ledger.Processing,
		Completed:    status.Ledger.Completed,
		Failed:       status.Ledger.Failed,
		QueuePending: status.QueuePending,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	artifacts, err := s.daemon.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]artifactView, 0, len(artifacts))
	for _, artifact := range artifacts {
		views = append(views, toArtifactView(artifact))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"artifacts": views})
}

func (s *apiServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/regenerate"); ok {
		s.handleRegenerate(w, r, strings.TrimSuffix(id, "/"))
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	artifact, err := s.daemon.drv.Status(r.Context(), rest)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toArtifactView(artifact))
}

func (s *apiServer) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stage := strings.TrimSpace(r.URL.Query().Get("stage"))
	if stage == "" {
		s.writeError(w, http.StatusBadRequest, "stage query parameter required")
		return
	}
	if err := s.daemon.drv.OnUpstreamRegenerated(r.Context(), id, stage); err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "artifact not found")
		case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrMissingSource):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"artifact_id": id, "stage": stage, "status": "scheduled"})
}

func toArtifactView(artifact *ledger.Artifact) artifactView {
	view := artifactView{
		ID:          artifact.ID,
		Kind:        string(artifact.Kind),
		Title:       artifact.Title,
		SourceReady: artifact.SourceReady,
		AudioPath:   artifact.AudioPath,
		AnswerAudio: artifact.AnswerAudio,
		CreatedAt:   artifact.CreatedAt,
		UpdatedAt:   artifact.UpdatedAt,
		Stages:      make(map[string]artifactStageView, len(artifact.Stages)),
	}
	for name, state := range artifact.Stages {
		view.Stages[name] = artifactStageView{
			Status:       string(state.Status),
			Result:       state.Result,
			ErrorMessage: state.ErrorMessage,
			UpdatedAt:    state.UpdatedAt,
		}
	}
	return view
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
