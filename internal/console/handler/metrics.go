package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// MetricsService Описываем, что нам нужно от сервиса
type MetricsService interface {
	GetIdentificationStats(ctx context.Context, window string) (*domain.IdentificationStats, error)
	GetQueryStats(ctx context.Context, window string) (*domain.QueryStats, error)
}

type MetricsHandler struct {
	service MetricsService
}

func NewMetricsHandler(s MetricsService) *MetricsHandler {
	return &MetricsHandler{service: s}
}

// metricEnvelope — единый формат ответа /v1/metrics/*
type metricEnvelope struct {
	MetricName string      `json:"metric_name"`
	Window     string      `json:"window"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}

// GetIdentificationRate возвращает долю успешных идентификаций
// GET /v1/metrics/identification-rate?window=24h
func (h *MetricsHandler) GetIdentificationRate(w http.ResponseWriter, r *http.Request) {
	window := windowParam(r)

	stats, err := h.service.GetIdentificationStats(r.Context(), window)
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	writeMetric(w, "identification_rate", window, stats)
}

// GetQueryStatistics возвращает статистику обработки запросов
// GET /v1/metrics/query-statistics?window=24h
func (h *MetricsHandler) GetQueryStatistics(w http.ResponseWriter, r *http.Request) {
	window := windowParam(r)

	stats, err := h.service.GetQueryStats(r.Context(), window)
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	writeMetric(w, "query_statistics", window, stats)
}

func windowParam(r *http.Request) string {
	if w := r.URL.Query().Get("window"); w != "" {
		return w
	}
	return "24h"
}

func writeMetric(w http.ResponseWriter, name, window string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metricEnvelope{
		MetricName: name,
		Window:     window,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	})
}
