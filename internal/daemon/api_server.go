package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
)

const maxListLimit = 1000

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// CameraView merges live detector state with the camera's recorded history.
type CameraView struct {
	CameraID string                `json:"camera_id"`
	WatchDir string                `json:"watch_dir,omitempty"`
	Detector *camera.DetectorState `json:"detector,omitempty"`
	History  *history.CameraStat   `json:"history,omitempty"`
}

// EvaluationList is the /api/evaluations response body.
type EvaluationList struct {
	Evaluations []history.Evaluation `json:"evaluations"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/cameras", authMiddleware(token, s.handleCameras))
	mux.HandleFunc("/api/evaluations", authMiddleware(token, s.handleEvaluations))
	mux.HandleFunc("/api/evaluations/", authMiddleware(token, s.handleEvaluation))
	mux.HandleFunc("/api/events", authMiddleware(token, s.daemon.feed.ServeHTTP))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(s.daemon.cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCameras(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	views := make([]CameraView, 0, len(s.daemon.cfg.FoldersToWatch))
	index := make(map[string]int, len(s.daemon.cfg.FoldersToWatch))
	for _, dir := range s.daemon.cfg.FoldersToWatch {
		id := camera.ID(dir)
		index[id] = len(views)
		views = append(views, CameraView{CameraID: id, WatchDir: dir})
	}
	for _, state := range s.daemon.workflow.Status().Detectors {
		if i, ok := index[state.CameraID]; ok {
			views[i].Detector = &state
		}
	}

	if store := s.daemon.store; store != nil {
		stats, err := store.CameraStats(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, stat := range stats {
			i, ok := index[stat.CameraID]
			if !ok {
				// Camera removed from the config but still in history.
				index[stat.CameraID] = len(views)
				views = append(views, CameraView{CameraID: stat.CameraID, History: &stat})
				continue
			}
			views[i].History = &stat
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cameras": views})
}

func (s *apiServer) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	store := s.daemon.store
	if store == nil {
		s.writeJSON(w, http.StatusOK, EvaluationList{Evaluations: []history.Evaluation{}})
		return
	}

	query := r.URL.Query()
	filter := history.Filter{
		CameraID:     strings.TrimSpace(query.Get("camera")),
		TamperedOnly: query.Get("tampered") == "1" || strings.EqualFold(query.Get("tampered"), "true"),
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if value := strings.TrimSpace(query.Get("since")); value != "" {
		since, err := time.Parse(time.RFC3339, value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since (want RFC 3339)")
			return
		}
		filter.Since = since
	}

	evaluations, err := store.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evaluations == nil {
		evaluations = []history.Evaluation{}
	}
	s.writeJSON(w, http.StatusOK, EvaluationList{Evaluations: evaluations})
}

func (s *apiServer) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	store := s.daemon.store
	if store == nil {
		s.writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/evaluations/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid evaluation id")
		return
	}
	ev, err := store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ev == nil {
		s.writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
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
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
