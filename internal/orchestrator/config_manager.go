package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"go.uber.org/zap"
)

// ConfigManager держит актуальную политику решения для Hot Path.
// L1 — локальная копия под RWMutex (запрос видит только память),
// L2 — Redis hash, единый для всех инстансов шлюза.
// Обновления прилетают из Console по Pub/Sub без рестарта.
type ConfigManager struct {
	mu      sync.RWMutex
	current domain.FusionConfig

	rdb    *redis.Client
	logger *zap.Logger
}

func NewConfigManager(defaults domain.FusionConfig, rdb *redis.Client, logger *zap.Logger) *ConfigManager {
	return &ConfigManager{
		current: defaults,
		rdb:     rdb,
		logger:  logger.Named("fusion-config"),
	}
}

// Current отдает снапшот политики. FusionConfig — значение:
// запрос работает с неизменяемой копией независимо от горячих обновлений.
func (m *ConfigManager) Current() domain.FusionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Init прогревает L1 из Redis при старте сервиса.
// Если hash пуст (первый запуск кластера) — заливаем туда файловые дефолты
// под распределенной блокировкой SetNX, чтобы сеял только один инстанс.
func (m *ConfigManager) Init(ctx context.Context) error {
	fields, err := m.rdb.HGetAll(ctx, infra.RedisKeyFusionConfig).Result()
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		ok, err := m.rdb.SetNX(ctx, infra.RedisKeyLockFusionSeed, "processing", 30*time.Second).Result()
		if err != nil || !ok {
			return nil // Либо ошибка сети, либо другой инстанс уже сеет
		}

		cfg := m.Current()
		m.logger.Info("Redis fusion config is empty, seeding from file defaults",
			zap.Float64("threshold", cfg.Threshold),
			zap.Float64("margin", cfg.Margin),
			zap.String("method", string(cfg.Method)))

		return m.rdb.HSet(ctx, infra.RedisKeyFusionConfig, map[string]interface{}{
			"threshold": cfg.Threshold,
			"margin":    cfg.Margin,
			"method":    string(cfg.Method),
		}).Err()
	}

	cfg, err := parseConfigFields(fields)
	if err != nil {
		// Битый hash не валит сервис: работаем на файловых дефолтах
		m.logger.Error("ignoring malformed fusion config in Redis", zap.Error(err))
		return nil
	}
	m.apply(cfg, "redis-warmup")
	return nil
}

// StartListener — «живучая» подписка на обновления политики.
// Обрабатывает переподключения: при каждом успешном коннекте перечитывает hash,
// чтобы не потерять сигнал, пропущенный за время обрыва.
func (m *ConfigManager) StartListener(ctx context.Context) {
	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanFusionConfig)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			m.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanFusionConfig), zap.Error(err))
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if err := m.Init(ctx); err != nil {
			m.logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				cfg, err := ParseConfigSignal(msg.Payload)
				if err != nil {
					m.logger.Error("invalid config signal", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				m.apply(cfg, "pubsub")
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}

// apply валидирует и атомарно подменяет L1.
// Невалидная политика никогда не доезжает до запросов.
func (m *ConfigManager) apply(cfg domain.FusionConfig, source string) {
	if err := cfg.Validate(); err != nil {
		m.logger.Error("rejecting invalid fusion config", zap.String("source", source), zap.Error(err))
		return
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	m.logger.Info("fusion config updated",
		zap.String("source", source),
		zap.Float64("threshold", cfg.Threshold),
		zap.Float64("margin", cfg.Margin),
		zap.String("method", string(cfg.Method)))
}

// ParseConfigSignal разбирает формат сигнала "threshold:margin:method".
// Формат должен совпадать с тем, что публикует Console.
func ParseConfigSignal(payload string) (domain.FusionConfig, error) {
	var cfg domain.FusionConfig

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return cfg, strconv.ErrSyntax
	}

	threshold, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return cfg, err
	}
	margin, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return cfg, err
	}

	cfg.Threshold = threshold
	cfg.Margin = margin
	cfg.Method = domain.FusionMethod(parts[2])
	return cfg, cfg.Validate()
}

// ConfigSignal — обратная операция к ParseConfigSignal (используется Console)
func ConfigSignal(cfg domain.FusionConfig) string {
	return strconv.FormatFloat(cfg.Threshold, 'f', -1, 64) + ":" +
		strconv.FormatFloat(cfg.Margin, 'f', -1, 64) + ":" +
		string(cfg.Method)
}

func parseConfigFields(fields map[string]string) (domain.FusionConfig, error) {
	var cfg domain.FusionConfig

	threshold, err := strconv.ParseFloat(fields["threshold"], 64)
	if err != nil {
		return cfg, err
	}
	margin, err := strconv.ParseFloat(fields["margin"], 64)
	if err != nil {
		return cfg, err
	}

	cfg.Threshold = threshold
	cfg.Margin = margin
	cfg.Method = domain.FusionMethod(fields["method"])
	return cfg, cfg.Validate()
}
