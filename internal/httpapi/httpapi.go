// Package httpapi exposes a minimal operator-facing HTTP surface — a
// health check and a status snapshot — separate from the agent-facing
// JSON-RPC socket transport.
//
// Grounded on internal/server/server.go's mux.NewRouter/
// PathPrefix("/api").Subrouter() route setup style.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/collabotd/collabot/internal/model"
)

// StatusProvider supplies the live counters the /status endpoint
// reports. Implemented by the daemon's wiring so this package has no
// dependency on the pool/ledger packages directly.
type StatusProvider interface {
	ActiveDispatches() []model.ActiveAgent
	ActiveDraftTaskSlug() (string, bool)
}

// Server is the minimal HTTP surface. It does not implement
// providers.Provider: it is an operator-facing diagnostic endpoint, not
// a communication channel participating in dispatch broadcasts.
type Server struct {
	httpServer *http.Server
	startedAt  time.Time
	status     StatusProvider
	version    string
}

// New builds the router and wraps it in an *http.Server listening on
// addr. Call Start to begin serving.
func New(addr, version string, status StatusProvider) *Server {
	s := &Server{
		startedAt: time.Now().UTC(),
		status:    status,
		version:   version,
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// Start begins serving in the background. ListenAndServe errors other
// than a clean Shutdown are returned on the channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop closes the server immediately, dropping any open connections.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"version":   s.version,
		"uptimeSec": int(time.Since(s.startedAt).Seconds()),
	}
	if s.status != nil {
		body["activeDispatches"] = s.status.ActiveDispatches()
		if slug, ok := s.status.ActiveDraftTaskSlug(); ok {
			body["activeDraftTaskSlug"] = slug
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
