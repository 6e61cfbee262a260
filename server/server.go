// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server exposes ingestion and chat over HTTP.
//
// Uploads and answers can be streamed as server-sent events. The caller
// identifies the document owner with the X-Owner-ID header.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/stream"
	"github.com/urfave/negroni"
)

// OwnerHeader carries the owner of uploaded documents.
const OwnerHeader = "X-Owner-ID"

// DefaultMaxUploadBytes bounds the multipart form kept in memory.
const DefaultMaxUploadBytes = 32 << 20

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the ingestion pipeline and the chat service.
type Server struct {
	pipeline  *ingestion.Pipeline
	streamer  *stream.Streamer
	chats     *chat.Service
	maxUpload int64
	handler   http.Handler
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithMaxUploadBytes sets the in-memory limit for multipart uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return errors.New("max upload bytes must be positive")
		}
		s.maxUpload = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Server.
func New(pipeline *ingestion.Pipeline, streamer *stream.Streamer, chats *chat.Service, opts ...Option) (*Server, error) {
	if pipeline == nil || streamer == nil || chats == nil {
		return nil, errors.New("server requires a pipeline, a streamer and a chat service")
	}
	s := &Server{
		pipeline:  pipeline,
		streamer:  streamer,
		chats:     chats,
		maxUpload: DefaultMaxUploadBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")
	s.handler = s.middleware(s.routes())
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	docs := r.PathPrefix("/api/documents").Subrouter()
	docs.HandleFunc("", s.listDocuments).Methods(http.MethodGet)
	docs.HandleFunc("", s.uploadDocuments).Methods(http.MethodPost)
	docs.HandleFunc("", s.purgeDocuments).Methods(http.MethodDelete)
	docs.HandleFunc("/stream", s.streamDocuments).Methods(http.MethodPost)

	chats := r.PathPrefix("/api/chats").Subrouter()
	chats.HandleFunc("", s.listChats).Methods(http.MethodGet)
	chats.HandleFunc("", s.createChat).Methods(http.MethodPost)
	chats.HandleFunc("/{id}", s.getChat).Methods(http.MethodGet)
	chats.HandleFunc("/{id}", s.deleteChat).Methods(http.MethodDelete)
	chats.HandleFunc("/{id}/messages", s.askChat).Methods(http.MethodPost)

	return r
}

func (s *Server) middleware(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// Handler returns the routed handler wrapped in recovery and access logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
		// No write timeout: answers and uploads stream for as long as they take.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
