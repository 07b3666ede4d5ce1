package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"go.uber.org/zap"
)

// MetricsRepository описывает требования к хранилищу агрегатов
type MetricsRepository interface {
	GetIdentificationStats(ctx context.Context, window string) (*domain.IdentificationStats, error)
	GetQueryStats(ctx context.Context, window string) (*domain.QueryStats, error)
}

// metricsCacheTTL — тяжелые аналитические запросы ходят в Postgres не чаще раза в минуту
const metricsCacheTTL = time.Minute

type MetricsService struct {
	repo   MetricsRepository
	rdb    *redis.Client // nil — кэш выключен, каждый запрос идет в БД
	logger *zap.Logger
}

func NewMetricsService(repo MetricsRepository, rdb *redis.Client, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("metrics-service"),
	}
}

// GetIdentificationStats — доля успешных идентификаций за окно, с кэшем в Redis.
// Отказ кэша не ломает метрики: молча проваливаемся в Postgres.
func (s *MetricsService) GetIdentificationStats(ctx context.Context, window string) (*domain.IdentificationStats, error) {
	key := infra.GetMetricsCacheKey("identification-rate", window)

	var cached domain.IdentificationStats
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.GetIdentificationStats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("metrics_service: identification stats: %w", err)
	}

	s.cacheSet(ctx, key, stats)
	return stats, nil
}

// GetQueryStats — статистика обработки запросов за окно, с кэшем в Redis
func (s *MetricsService) GetQueryStats(ctx context.Context, window string) (*domain.QueryStats, error) {
	key := infra.GetMetricsCacheKey("query-statistics", window)

	var cached domain.QueryStats
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.GetQueryStats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("metrics_service: query stats: %w", err)
	}

	s.cacheSet(ctx, key, stats)
	return stats, nil
}

func (s *MetricsService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.rdb == nil {
		return false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false // miss или Redis лежит — идем в БД
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *MetricsService) cacheSet(ctx context.Context, key string, val interface{}) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, metricsCacheTTL).Err(); err != nil {
		s.logger.Warn("metrics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
