package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "idfuse"
)

// Ключи состояния и кэша
const (
	// RedisKeyFusionConfig — hash с актуальной политикой решения (threshold/margin/method).
	// Источник правды для горячих обновлений между инстансами шлюза.
	RedisKeyFusionConfig     = RedisNamespace + ":fusion:config"
	RedisKeyLockFusionSeed   = RedisNamespace + ":lock:fusion:seed"
	RedisKeyMetricsCacheBase = RedisNamespace + ":metrics:cache"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanFusionConfig — канал трансляции обновлений политики из Console в шлюзы.
	RedisChanFusionConfig = RedisNamespace + ":fusion:config-update"
)

// GetMetricsCacheKey Генератор ключей кэша агрегатов: метрика + окно
func GetMetricsCacheKey(metric, window string) string {
	return fmt.Sprintf("%s:%s:%s", RedisKeyMetricsCacheBase, metric, window)
}
