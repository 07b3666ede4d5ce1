package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/clients"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra/auth"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/orchestrator"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/repository/postgres"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/trace"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		logger.Fatal("database.url (DATABASE_URL) is required")
	}
	traceStorage := postgres.NewTraceRepo(cfg.Database.URL)
	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := traceStorage.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// Контекст для управления жизненным циклом фоновых горутин.
	// При завершении main() или SIGTERM cancel() остановит слушателей.
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := orchestrator.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.MetricsPort), mux))
	}()

	// 4. Аналитика: асинхронный рекордер трасс (Drain Pattern на остановке)
	recorder := trace.NewTraceFS(traceStorage, logger, trace.Options{
		BufferSize:    cfg.Trace.BufferSize,
		BatchSize:     cfg.Trace.BatchSize,
		FlushInterval: cfg.Trace.FlushInterval,
		BufferFill:    metrics.TraceBufferFill,
		FlushFailures: metrics.TraceFlushFailures,
	})
	recorder.Start()

	// 5. Внешние сервисы: Reliability (Retries, Circuit Breaker) на каждый
	onCBChange := func(name string, open bool) {
		state := 0.0
		if open {
			state = 1.0
		}
		metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
	}

	verifier := clients.NewVerifierClient(cfg.Services.Verifier,
		clients.NewReliability(string(domain.ServiceVerifier), onCBChange), logger)
	chatbot := clients.NewChatbotClient(cfg.Services.Chatbot,
		cfg.Services.ChatbotProvider, cfg.Services.ChatbotTopK,
		clients.NewReliability(string(domain.ServiceChatbot), onCBChange), logger)

	// 6. Control Plane: горячие обновления политики решения из Console
	configs := orchestrator.NewConfigManager(cfg.Fusion, rdb, logger)
	if err := configs.Init(appCtx); err != nil {
		// Redis недоступен — работаем на файловых дефолтах, слушатель дождется коннекта
		logger.Warn("fusion config warmup failed, using file defaults", zap.Error(err))
	}
	go configs.StartListener(appCtx)

	// 7. Core (Сборка конвейера оркестрации)
	dispatcher := orchestrator.NewDispatcher(
		[]clients.ServiceCaller{verifier, chatbot},
		cfg.Dispatch.OverallDeadline,
		logger,
	)
	core := orchestrator.NewCore(dispatcher, configs, recorder, metrics, logger)

	// 8. HTTP Server
	validator, err := newValidator(cfg)
	if err != nil {
		logger.Fatal("auth setup failed", zap.Error(err))
	}

	// Цепочка: Trace-ID -> RS256 Auth -> Identify
	endpoint := http.HandlerFunc(core.HandleIdentify)
	protectedHandler := orchestrator.TracingMiddleware(
		auth.NewMiddleware(validator, logger)(
			endpoint,
		),
	)

	mux := http.NewServeMux()
	mux.Handle("/v1/identify", protectedHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("IFO gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("IFO gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые горутины и дожимаем буфер трасс (Final Flush)
	cancel()
	recorder.Stop()
	logger.Info("IFO gateway exited properly")
}

func newValidator(cfg *infra.Config) (*auth.BaseValidator, error) {
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		return nil, err
	}
	return auth.NewBaseValidator(pubKey), nil
}
