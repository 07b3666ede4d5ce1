package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// Config — корневая структура конфигурации всей платформы.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Database DatabaseConfig      `mapstructure:"database"`
	Redis    RedisConfig         `mapstructure:"redis"`
	Auth     AuthConfig          `mapstructure:"auth"`
	Services ServicesConfig      `mapstructure:"services"`
	Fusion   domain.FusionConfig `mapstructure:"fusion"`
	Dispatch DispatchConfig      `mapstructure:"dispatch"`
	Trace    TraceConfig         `mapstructure:"trace"`
	Logger   LoggerConfig        `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub и Cache).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// ServiceEndpoint — адрес и таймауты одного внешнего сервиса идентификации.
// Таймаут принадлежит клиенту (per-service scope), не диспетчеру.
type ServiceEndpoint struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ServicesConfig — внешние коллабораторы ядра оркестрации.
type ServicesConfig struct {
	Verifier ServiceEndpoint `mapstructure:"verifier"`
	Chatbot  ServiceEndpoint `mapstructure:"chatbot"`

	// Дефолты запроса к чат-боту
	ChatbotProvider string `mapstructure:"chatbot_provider"`
	ChatbotTopK     int    `mapstructure:"chatbot_top_k"`
}

// DispatchConfig — общий дедлайн диспетчера. Может быть короче таймаутов
// клиентов: это валидная конфигурация, на выходе просто неполный ResultSet.
type DispatchConfig struct {
	OverallDeadline time.Duration `mapstructure:"overall_deadline"`
}

// TraceConfig настраивает асинхронную запись трасс.
type TraceConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: FUSION_THRESHOLD=0.8 перекроет fusion.threshold
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Валидация политики решения — ConfigurationError фатален на старте,
	// per-request путь эту ошибку не увидит никогда
	if err := cfg.Fusion.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateServices(); err != nil {
		return nil, err
	}

	// 7. Загрузка ключей из Файла ИЛИ из ENV
	// Сначала проверяем, не лежит ли сам PEM-ключ в ENV (для Docker/K8s)
	// Если нет — читаем файл по указанному пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func (c *Config) validateServices() error {
	if c.Services.Verifier.BaseURL == "" {
		return errors.New("services: verifier base_url is required")
	}
	if c.Services.Chatbot.BaseURL == "" {
		return errors.New("services: chatbot base_url is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	// Политика решения (эквивалент THRESHOLD/MARGIN исходной системы)
	v.SetDefault("fusion.threshold", 0.75)
	v.SetDefault("fusion.margin", 0.1)
	v.SetDefault("fusion.method", string(domain.MethodDelta))

	v.SetDefault("services.verifier.timeout", 30*time.Second)
	v.SetDefault("services.verifier.connect_timeout", 10*time.Second)
	v.SetDefault("services.chatbot.timeout", 30*time.Second)
	v.SetDefault("services.chatbot.connect_timeout", 10*time.Second)
	v.SetDefault("services.chatbot_provider", "deepseek")
	v.SetDefault("services.chatbot_top_k", 4)

	v.SetDefault("dispatch.overall_deadline", 45*time.Second)

	v.SetDefault("trace.buffer_size", 10000)
	v.SetDefault("trace.batch_size", 100)
	v.SetDefault("trace.flush_interval", 500*time.Millisecond)
}

// loadKeyResource — универсальный хелпер архитектора
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
