package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/rs/zerolog"
)

// Controller is the narrow slice of *controller.Controller the facade
// drives, declared as an interface so tests can substitute a fake.
type Controller interface {
	Run(ctx context.Context, requestID string, req controller.Request) (executor.Result, error)
}

// Registry is the narrow slice of *registry.Aggregator the facade reads
// for the GET /datasets view and the /ready check.
type Registry interface {
	Snapshot() types.RegistrySnapshot
}

// Catalog is the narrow slice of algorithms.Catalog the facade reads for
// the GET /algorithms listing.
type Catalog interface {
	List() []controller.AlgorithmInfo
}

// Server is the controller's HTTP facade (C6's external surface).
type Server struct {
	controller Controller
	registry   Registry
	catalog    Catalog
	mux        *http.ServeMux
	logger     zerolog.Logger
}

// NewServer builds the facade over its collaborators and wires its routes.
func NewServer(ctrl Controller, reg Registry, cat Catalog) *Server {
	s := &Server{
		controller: ctrl,
		registry:   reg,
		catalog:    cat,
		logger:     log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /algorithms/{name}", s.withMetrics("run_algorithm", s.handleRunAlgorithm))
	mux.HandleFunc("GET /algorithms", s.withMetrics("list_algorithms", s.handleListAlgorithms))
	mux.HandleFunc("GET /datasets", s.withMetrics("list_datasets", s.handleListDatasets))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	s.mux = mux

	return s
}

// ServeHTTP makes Server an http.Handler; every request passes through
// withRequestID before reaching the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withRequestID(s.mux).ServeHTTP(w, r)
}

// Start runs the facade on addr until ctx is cancelled or ListenAndServe
// returns a fatal error.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// inboundRequest is the decoded shape of a POST /algorithms/{name} body.
type inboundRequest struct {
	InputData struct {
		DataModel string          `json:"data_model"`
		Datasets  []string        `json:"datasets"`
		X         []string        `json:"x"`
		Y         []string        `json:"y"`
		Filters   json.RawMessage `json:"filters"`
	} `json:"inputdata"`
	Parameters map[string]any `json:"parameters"`
	Flags      map[string]any `json:"flags"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type columnResponse struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

type resultResponse struct {
	Schema []columnResponse `json:"schema"`
	Rows   [][]any          `json:"rows"`
}

func (s *Server) handleRunAlgorithm(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	name := r.PathValue("name")

	var body inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	filters := ""
	if len(body.InputData.Filters) > 0 {
		filters = string(body.InputData.Filters)
	}

	req := controller.Request{
		Algorithm:    name,
		DataModelKey: body.InputData.DataModel,
		Datasets:     body.InputData.Datasets,
		X:            body.InputData.X,
		Y:            body.InputData.Y,
		Filters:      filters,
		Parameters:   body.Parameters,
	}

	result, err := s.controller.Run(r.Context(), requestID, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestID).Str("algorithm", name).Msg("algorithm run request failed")
		writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
		return
	}

	columns := make([]columnResponse, len(result.Schema))
	for i, col := range result.Schema {
		columns[i] = columnResponse{Name: col.Name, DType: string(col.DType)}
	}
	writeJSON(w, http.StatusOK, resultResponse{Schema: columns, Rows: result.Rows})
}

func (s *Server) handleListAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot().AvailableDatasetsPerDataModel())
}

// statusForError maps a classified error to its reserved HTTP status: 460
// for a user-facing request problem, 500 for everything else the
// controller can return.
func statusForError(err error) int {
	if ferrors.KindOf(err) == ferrors.BadUserInput {
		return 460
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// withMetrics times a handler and records it under route in
// fedmesh_api_request_duration_seconds / fedmesh_api_requests_total.
func (s *Server) withMetrics(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()
		h(rec, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}
