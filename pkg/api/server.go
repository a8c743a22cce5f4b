package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Server exposes slipway's observation surface over HTTP: run status,
// stored descriptors, health, and Prometheus metrics. Every endpoint
// is read-only; mutations go through the coordinator, never HTTP.
type Server struct {
	store  storage.Store
	mux    *http.ServeMux
	http   *http.Server
	logger zerolog.Logger
}

// NewServer creates a status server reading from the store.
func NewServer(store storage.Store) *Server {
	mux := http.NewServeMux()
	s := &Server{
		store:  store,
		mux:    mux,
		logger: log.WithComponent("api"),
	}

	mux.HandleFunc("/v1/runs", s.instrument("ListRuns", s.listRuns))
	mux.HandleFunc("/v1/runs/", s.instrument("GetRun", s.getRun))
	mux.HandleFunc("/v1/workloads", s.instrument("ListWorkloads", s.listWorkloads))
	mux.HandleFunc("/v1/workloads/", s.instrument("GetWorkload", s.getWorkload))
	mux.HandleFunc("/v1/topologies", s.instrument("ListTopologies", s.listTopologies))
	mux.HandleFunc("/v1/topologies/", s.instrument("GetTopology", s.getTopology))

	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	mux.Handle("/livez", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	return s
}

// Start serves until Stop is called. It blocks, so callers run it on
// its own goroutine.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Status API listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Handler returns the route table for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts and times requests per logical method.
func (s *Server) instrument(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.APIRequestsTotal.WithLabelValues(method, strconv.Itoa(recorder.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
	}
}

// listRuns returns stored runs, newest first. An optional ?cluster=
// query narrows to one cluster's runs.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		runs []*types.PipelineRun
		err  error
	)
	if cluster := r.URL.Query().Get("cluster"); cluster != "" {
		runs, err = s.store.ListRunsByCluster(cluster)
	} else {
		runs, err = s.store.ListRuns()
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	run, err := s.store.GetRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("run", id).Msg("Failed to get run")
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) listWorkloads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	workloads, err := s.store.ListWorkloads()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list workloads")
		writeError(w, http.StatusInternalServerError, "failed to list workloads")
		return
	}
	writeJSON(w, http.StatusOK, workloads)
}

// getWorkload looks up one workload by its namespace/name key.
func (s *Server) getWorkload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/workloads/")
	parts := strings.Split(key, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "workload not found")
		return
	}

	wd, err := s.store.GetWorkload(parts[0], parts[1])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workload not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("workload", key).Msg("Failed to get workload")
		writeError(w, http.StatusInternalServerError, "failed to get workload")
		return
	}

	writeJSON(w, http.StatusOK, wd)
}

func (s *Server) listTopologies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	topologies, err := s.store.ListTopologies()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list topologies")
		writeError(w, http.StatusInternalServerError, "failed to list topologies")
		return
	}
	writeJSON(w, http.StatusOK, topologies)
}

func (s *Server) getTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/topologies/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "topology not found")
		return
	}

	ct, err := s.store.GetTopology(name)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "topology not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("topology", name).Msg("Failed to get topology")
		writeError(w, http.StatusInternalServerError, "failed to get topology")
		return
	}

	writeJSON(w, http.StatusOK, ct)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
