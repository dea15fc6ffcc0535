package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/janpfeifer/TypeRace/internal/game"
	"k8s.io/klog/v2"
)

// Run starts the server and blocks until the context is canceled.
//
// If started is not nil, the ServerState is sent to it once the server is
// listening; its Address field holds the actual listening address.
func Run(ctx context.Context, cfg Config, started chan<- *ServerState) error {
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", addr, err)
	}

	serverState := NewServerState(cfg)
	serverState.Address = listener.Addr().String()

	srv := &http.Server{
		Handler:           serverState.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		klog.Infof("Server started on %s", serverState.Address)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if started != nil {
		started <- serverState
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		serverState.Rooms.Close()
		return fmt.Errorf("serve: %w", err)
	}

	// Graceful shutdown: stop accepting, then drop the WebSocket clients,
	// which http.Server.Shutdown does not track.
	klog.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if closeErr := serverState.Close(cfg.ShutdownTimeout); closeErr != nil {
		klog.Warningf("Timed out waiting for clients to disconnect")
		err = errors.Join(err, closeErr)
	}
	return err
}

// Routes returns the HTTP handler of the server.
func (s *ServerState) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "TypeRace server %s is running. Connect to /ws.\n", game.Version)
	})
	return mux
}

// Health is the body of the /healthz response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rooms   int    `json:"rooms"`
	Clients int    `json:"clients"`
}

// HandleHealth reports liveness and the number of live rooms and clients.
func (s *ServerState) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := Health{
		Status:  "ok",
		Version: game.Version,
		Rooms:   s.Rooms.Len(),
		Clients: s.ConnectionCount(),
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		klog.Errorf("Error writing health response: %v", err)
	}
}
