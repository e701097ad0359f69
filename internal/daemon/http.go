package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/gitsource/internal/logfields"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
)

// StatusPayload is the JSON served at /status.
type StatusPayload struct {
	Status        Status      `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	Sources       int         `json:"sources"`
	Remotes       int         `json:"remotes"`
	Files         int         `json:"files"`
	LastRun       *RunEvent   `json:"last_run,omitempty"`
	RecentRuns    []RunRecord `json:"recent_runs"`
}

// RunRecord is the wire shape of one run-history row.
type RunRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Remote     string    `json:"remote"`
	Branch     string    `json:"branch,omitempty"`
	Commit     string    `json:"commit,omitempty"`
	Files      int       `json:"files"`
	Cloned     bool      `json:"cloned"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

func runRecord(r runstore.Run) RunRecord {
	return RunRecord{
		ID:         r.ID.String(),
		Source:     r.Source,
		Remote:     r.Remote,
		Branch:     r.Branch,
		Commit:     r.Commit,
		Files:      r.Files,
		Cloned:     r.Cloned,
		Outcome:    r.Outcome,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		DurationMS: float64(r.Duration.Milliseconds()),
	}
}

// HTTPServer serves the daemon's health, status and metrics endpoints.
type HTTPServer struct {
	daemon *Daemon
	listen string
	server *http.Server
	addr   string
}

// NewHTTPServer prepares the endpoint server; Start binds it.
func NewHTTPServer(daemon *Daemon, listen string) *HTTPServer {
	if listen == "" {
		listen = ":8080"
	}
	return &HTTPServer{daemon: daemon, listen: listen}
}

// Addr returns the bound address, empty before Start.
func (s *HTTPServer) Addr() string { return s.addr }

// Start binds the listener and begins serving. An occupied port fails
// here, not in the serve goroutine.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.listen, err)
	}
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	if h := s.daemon.metricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("daemon http server error", logfields.Error(err))
		}
	}()

	slog.Info("daemon http server started", slog.String("listen", s.addr))
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := s.daemon.GetStatus()
	code := http.StatusOK
	if status != StatusRunning && status != StatusStarting {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.daemon.statusPayload(r.Context()))
}

// statusPayload assembles the /status response.
func (d *Daemon) statusPayload(ctx context.Context) StatusPayload {
	remotes, files := d.store.Len()
	payload := StatusPayload{
		Status:        d.GetStatus(),
		StartedAt:     d.startTime,
		UptimeSeconds: time.Since(d.startTime).Seconds(),
		Sources:       len(d.Config().Sources),
		Remotes:       remotes,
		Files:         files,
		RecentRuns:    []RunRecord{},
	}

	if summary := d.LastRun(); summary != nil {
		evt := runEvent(summary)
		payload.LastRun = &evt
	}

	recent, err := d.runs.Recent(ctx, 20)
	if err != nil {
		slog.Warn("could not load run history", logfields.Error(err))
	}
	for _, r := range recent {
		payload.RecentRuns = append(payload.RecentRuns, runRecord(r))
	}
	return payload
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("could not encode response", logfields.Error(err))
	}
}
