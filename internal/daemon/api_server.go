package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"clipspace/internal/api"
	"clipspace/internal/config"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	facade *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		facade: d.facade,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/items", authMiddleware(token, srv.handleItems))
	mux.HandleFunc("/api/items/", authMiddleware(token, srv.handleItem))
	mux.HandleFunc("/api/spaces", authMiddleware(token, srv.handleSpaces))
	mux.HandleFunc("/api/jobs", authMiddleware(token, srv.handleJobs))
	mux.HandleFunc("/api/events", authMiddleware(token, srv.handleEvents))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api_server")
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

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Warn("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch extern.Kind(err) {
	case "not_found":
		status = http.StatusNotFound
	case "validation":
		status = http.StatusBadRequest
	case "configuration":
		status = http.StatusServiceUnavailable
	case "unsupported":
		status = http.StatusNotImplemented
	}
	s.writeJSON(w, status, api.Outcome(err))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

type addItemRequest struct {
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	SpaceID string `json:"spaceId,omitempty"`
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		var (
			items []api.ItemRecord
			err   error
		)
		switch {
		case query.Get("q") != "":
			items, err = s.facade.Search(r.Context(), query.Get("q"))
		case query.Has("space"):
			items, err = s.facade.SpaceItems(r.Context(), query.Get("space"))
		default:
			items, err = s.facade.History(r.Context())
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req addItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", extern.ErrValidation, err))
			return
		}
		opts := api.AddOptions{}
		if req.SpaceID != "" {
			opts.SpaceID = &req.SpaceID
		}
		var receipt api.IngestReceipt
		switch {
		case req.Text != "":
			receipt = s.facade.AddText(r.Context(), req.Text, opts)
		case req.URL != "":
			receipt = s.facade.AddURL(r.Context(), req.URL, opts)
		case req.Path != "":
			receipt = s.facade.AddFile(r.Context(), req.Path, opts)
		default:
			s.writeError(w, fmt.Errorf("%w: one of text, url, path required", extern.ErrValidation))
			return
		}
		status := http.StatusCreated
		if !receipt.Success {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, receipt)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *apiServer) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/items/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := s.facade.Item(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := s.facade.DeleteItem(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.Outcome(nil))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *apiServer) handleSpaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	spaces, err := s.facade.Spaces(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"spaces": spaces})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var states []string
	if raw := r.URL.Query().Get("state"); raw != "" {
		states = strings.Split(raw, ",")
	}
	jobs, err := s.facade.Jobs(r.Context(), states)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
