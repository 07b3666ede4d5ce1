package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/service"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra/auth"
	"go.uber.org/zap"
)

type FusionHandler struct {
	service *service.FusionService
	logger  *zap.Logger
}

func NewFusionHandler(s *service.FusionService, logger *zap.Logger) *FusionHandler {
	return &FusionHandler{service: s, logger: logger.Named("fusion-handler")}
}

// GetConfig отдает текущую политику решения
// GET /v1/fusion/config
func (h *FusionHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch fusion config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// UpdateConfig меняет политику решения на всем кластере шлюзов
// PUT /v1/fusion/config, требует scope fusion.write
func (h *FusionHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	// Чтение метрик и изменение политики — разные привилегии
	if !auth.HasScope(r.Context(), "fusion.write") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var cfg domain.FusionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	operatorID := auth.UserID(r.Context())
	if err := h.service.UpdateConfig(r.Context(), cfg, operatorID); err != nil {
		h.logger.Warn("fusion config update rejected", zap.String("operator_id", operatorID), zap.Error(err))
		// tip: Разделяй типы ошибок (400 валидация, 500 инфраструктура)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
