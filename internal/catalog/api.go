package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// APIPath is the route of the HTTP resolution endpoint.
const APIPath = "/api/iconclass"

// APIHandler serves GET /api/iconclass?notation=A&notation=B as a JSON array
// holding one record, or null, per requested notation and in request order.
type APIHandler struct {
	service *Service
}

// NewAPIHandler creates the HTTP resolution handler.
func NewAPIHandler(service *Service) *APIHandler {
	return &APIHandler{service: service}
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	notations := r.URL.Query()["notation"]
	for i, n := range notations {
		notations[i] = strings.TrimSpace(n)
	}
	if limit := h.service.Settings().Resolver.MaxBatch; len(notations) > limit {
		http.Error(w, fmt.Sprintf("too many notations: %d (at most %d)", len(notations), limit), http.StatusBadRequest)
		return
	}

	engine, err := h.service.Engine()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	records, err := engine.ResolveAll(r.Context(), notations)
	if err != nil {
		slog.ErrorContext(r.Context(), "Resolution failed", "error", err)
		http.Error(w, "resolution failed", http.StatusInternalServerError)
		return
	}

	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		http.Error(w, "failed to encode records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
