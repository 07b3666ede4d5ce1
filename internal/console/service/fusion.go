package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/orchestrator"
	"go.uber.org/zap"
)

// FusionService управляет политикой решения кластера: Redis hash — источник
// правды для шлюзов, Pub/Sub — сигнал горячего обновления.
type FusionService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewFusionService(rdb *redis.Client, logger *zap.Logger) *FusionService {
	return &FusionService{
		rdb:    rdb,
		logger: logger.Named("fusion-service"),
	}
}

// GetConfig читает актуальную политику из Redis
func (s *FusionService) GetConfig(ctx context.Context) (*domain.FusionConfig, error) {
	payload, err := s.rdb.HGetAll(ctx, infra.RedisKeyFusionConfig).Result()
	if err != nil {
		return nil, fmt.Errorf("fusion_service: failed to read config: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("fusion_service: config not initialized (gateway not started yet?)")
	}

	cfg, err := orchestrator.ParseConfigSignal(
		payload["threshold"] + ":" + payload["margin"] + ":" + payload["method"])
	if err != nil {
		return nil, fmt.Errorf("fusion_service: malformed config in Redis: %w", err)
	}
	return &cfg, nil
}

// UpdateConfig — двухфазное обновление политики (как переключение состояний):
// 1) персистим в Redis hash, 2) транслируем сигнал шлюзам.
// operatorID пишется в лог для подотчетности (Accountability).
func (s *FusionService) UpdateConfig(ctx context.Context, cfg domain.FusionConfig, operatorID string) error {
	// Невалидная политика не должна доехать ни до hash, ни до шлюзов
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 1. Persistence Layer
	if err := s.rdb.HSet(ctx, infra.RedisKeyFusionConfig, map[string]interface{}{
		"threshold": cfg.Threshold,
		"margin":    cfg.Margin,
		"method":    string(cfg.Method),
	}).Err(); err != nil {
		s.logger.Error("failed to persist fusion config",
			zap.String("operator_id", operatorID),
			zap.Error(err))
		return fmt.Errorf("fusion config persistence error: %w", err)
	}

	// 2. Real-time Signaling
	payload := orchestrator.ConfigSignal(cfg)
	if err := s.rdb.Publish(ctx, infra.RedisChanFusionConfig, payload).Err(); err != nil {
		// Шлюзы подтянут hash при следующем реконнекте (Fail-Safe)
		s.logger.Warn("config signal delivery failed",
			zap.String("channel", infra.RedisChanFusionConfig),
			zap.Error(err))
	} else {
		s.logger.Info("fusion config updated successfully",
			zap.String("operator_id", operatorID),
			zap.Float64("threshold", cfg.Threshold),
			zap.Float64("margin", cfg.Margin),
			zap.String("method", string(cfg.Method)))
	}

	return nil
}
