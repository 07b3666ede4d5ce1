package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/service"
)

type TraceHandler struct {
	service *service.TraceService
}

func NewTraceHandler(s *service.TraceService) *TraceHandler {
	return &TraceHandler{service: s}
}

// GetTraces возвращает свежие трассы оркестрации с поддержкой фильтрации
// GET /v1/traces?request_id=...&outcome=...&limit=50
func (h *TraceHandler) GetTraces(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	requestID := r.URL.Query().Get("request_id")
	outcome := r.URL.Query().Get("outcome")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	traces, err := h.service.FetchRecent(r.Context(), requestID, outcome, limit)
	if err != nil {
		http.Error(w, "Failed to fetch traces", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(traces)
}
