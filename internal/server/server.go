/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/gpillon/wakeonlan/internal/registry"
	"github.com/gpillon/wakeonlan/internal/wol"
)

// Server exposes health, metrics and a small wake API over HTTP
type Server struct {
	registry *registry.Registry
	waker    *wol.Waker
	log      logr.Logger
}

// New creates a new HTTP server
func New(reg *registry.Registry, waker *wol.Waker, log logr.Logger) *Server {
	return &Server{
		registry: reg,
		waker:    waker,
		log:      log,
	}
}

type wakeResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Broadcast string `json:"broadcast"`
	Port      int    `json:"port"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeText(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.registry == nil || s.waker == nil {
			s.writeText(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		s.writeText(w, http.StatusOK, "ready")
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/targets", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.registry.List())
	})

	mux.HandleFunc("POST /api/v1/targets/{id}/wake", s.handleWake)

	return mux
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, wakeResponse{ID: r.PathValue("id"), Error: "malformed target id"})
		return
	}

	target, ok := s.registry.Get(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, wakeResponse{ID: id.String(), Error: "target not found"})
		return
	}

	result := <-s.waker.Wake(r.Context(), target.WakeRequest())

	resp := wakeResponse{
		ID:        target.ID.String(),
		Name:      target.Name,
		Broadcast: result.Broadcast,
		Port:      wol.DefaultWOLPort,
	}

	status := http.StatusOK
	if result.Err != nil {
		resp.Error = result.Err.Error()
		resp.Retryable = wol.IsRetryable(result.Err)

		var sockErr *wol.SocketError
		switch {
		case errors.Is(result.Err, wol.ErrInvalidMAC):
			status = http.StatusBadRequest
		case errors.As(result.Err, &sockErr):
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusBadGateway
		}
	}

	s.writeJSON(w, status, resp)
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("Starting HTTP server", "address", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Error(err, "Failed to shutdown HTTP server")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.Error(err, "Failed to write response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err, "Failed to write response")
	}
}
