// Package lookupd implements the geoquery HTTP API.
package lookupd

//
// HTTP handlers
//

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/ooni/geoquery/internal/logx"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/runtimex"
)

// Engine is the engine used by the handlers. [*engine.Engine] implements it.
type Engine interface {
	Query(ctx context.Context, address string) (*model.IPInfo, error)
	Metrics() *engine.AggregatedMetrics
}

var _ Engine = &engine.Engine{}

// Handler is an [http.Handler] implementing the lookup API.
type Handler struct {
	// BaseLogger is the MANDATORY logger to use.
	BaseLogger model.Logger

	// Engine is the MANDATORY engine to use.
	Engine Engine

	// NewRequestID is the MANDATORY factory for request IDs.
	NewRequestID func() string
}

var _ http.Handler = &Handler{}

// NewHandler constructs a [*Handler].
func NewHandler(logger model.Logger, eng Engine) *Handler {
	return &Handler{
		BaseLogger:   logger,
		Engine:       eng,
		NewRequestID: uuid.NewString,
	}
}

// errorResponse is the body we send along with a non-200 status.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// track the number of in-flight requests
	metricRequestsInflight.Inc()
	defer metricRequestsInflight.Dec()

	// assign an ID to the request
	reqID := h.NewRequestID()
	w.Header().Set("X-Request-Id", reqID)
	logger := &logx.PrefixLogger{Prefix: "<" + reqID + "> ", Logger: h.BaseLogger}

	// we only handle the GET method
	if req.Method != http.MethodGet {
		metricRequestsCount.WithLabelValues("405", "bad_request_method").Inc()
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// make sure the address is valid
	address := req.URL.Query().Get("ip")
	if address == "" {
		metricRequestsCount.WithLabelValues("400", "missing_ip").Inc()
		writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "missing ip", RequestID: reqID})
		return
	}
	if _, err := netip.ParseAddr(address); err != nil {
		metricRequestsCount.WithLabelValues("400", "invalid_ip").Inc()
		writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid ip", RequestID: reqID})
		return
	}

	// query the engine
	started := time.Now()
	info, err := h.Engine.Query(req.Context(), address)
	elapsed := time.Since(started)

	// track the time required to produce a response
	metricLookupDurationSeconds.Observe(elapsed.Seconds())

	// handle the case of failure
	if err != nil {
		logger.Warnf("lookup %s: %s", address, err.Error())
		code, reason := classifyError(err)
		metricRequestsCount.WithLabelValues(strconv.Itoa(code), reason).Inc()
		writeJSON(w, code, &errorResponse{Error: err.Error(), RequestID: reqID})
		return
	}

	logger.Debugf("lookup %s: %s in %s", address, info.String(), elapsed)
	metricRequestsCount.WithLabelValues("200", "ok").Inc()
	writeJSON(w, http.StatusOK, info)
}

// classifyError maps an engine error to a status code and a metric reason.
func classifyError(err error) (int, string) {
	var bqe *engine.BackendQueryError
	switch {
	case errors.Is(err, engine.ErrNoAvailableSource):
		return http.StatusServiceUnavailable, "no_available_source"
	case errors.Is(err, engine.ErrSelectionFailure):
		return http.StatusServiceUnavailable, "selection_failure"
	case errors.As(err, &bqe):
		return http.StatusBadGateway, "backend_failed"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// MetricsHandler is an [http.Handler] returning the engine metrics as JSON.
type MetricsHandler struct {
	// Engine is the MANDATORY engine to use.
	Engine Engine
}

var _ http.Handler = &MetricsHandler{}

// ServeHTTP implements http.Handler.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.Metrics())
}

// NewServeMux returns a mux routing the API endpoints to the handlers.
func NewServeMux(logger model.Logger, eng Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/lookup", NewHandler(logger, eng))
	mux.Handle("/metrics/engine", &MetricsHandler{Engine: eng})
	return mux
}

// writeJSON serializes the given value and writes it along with the status code.
func writeJSON(w http.ResponseWriter, code int, value any) {
	// Note: we assume that json.Marshal cannot fail because we only
	// serialize clearly-serializable data structures.
	data, err := json.Marshal(value)
	runtimex.PanicOnError(err, "json.Marshal failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
