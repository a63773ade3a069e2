package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"inboxd/internal/constants"
	"inboxd/internal/database"
	"inboxd/internal/metrics"
	"inboxd/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes read-only daemon introspection over HTTP: health, queue
// status, and the in-memory metrics registry.
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	db       *database.Database
	registry *metrics.Registry
	server   *http.Server
	port     int
}

func NewServer(cfg *models.Config, db *database.Database, registry *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		db:       db,
		registry: registry,
		port:     cfg.Server.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Debug("Failed to write health response")
		}
	}
}

// statusResponse summarizes the store for operators.
type statusResponse struct {
	WatermarkEpoch int64          `json:"watermark_epoch"`
	Jobs           map[string]int `json:"jobs"`
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		watermark, err := s.db.GetWatermarkEpoch(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Failed to read watermark for status")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		jobs := make(map[string]int)
		for _, status := range []models.JobStatus{models.JobQueued, models.JobRunning, models.JobSucceeded, models.JobFailed} {
			count, err := s.db.CountJobsByStatus(ctx, status)
			if err != nil {
				s.logger.WithError(err).Error("Failed to count jobs for status")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			jobs[string(status)] = count
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusResponse{
			WatermarkEpoch: watermark,
			Jobs:           jobs,
		}); err != nil {
			s.logger.WithError(err).Error("Failed to encode status response")
		}
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(s.registry.GetAllMetrics()); err != nil {
			s.logger.WithError(err).Error("Failed to encode metrics response")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
