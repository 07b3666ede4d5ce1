package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/handler"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/server"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/service"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra/auth"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/repository/postgres"
)

// Console API — операторский контур платформы: выдача токенов, аналитика
// поверх трасс оркестрации и горячее управление политикой решения.
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

	// 2. Криптография: Console и подписывает (private), и проверяет (public)
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)

	// 3. Хранилища
	if cfg.Database.URL == "" {
		logger.Fatal("database.url (DATABASE_URL) is required")
	}
	repo := postgres.NewTraceRepo(cfg.Database.URL)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 4. Сервисный слой
	authSvc := service.NewAuthService(repo, privKey, cfg.Auth.TokenTTL)
	metricsSvc := service.NewMetricsService(repo, rdb, logger)
	traceSvc := service.NewTraceService(repo)
	fusionSvc := service.NewFusionService(rdb, logger)

	// 5. Транспортный слой (chi)
	srv := server.NewConsoleServer(
		cfg,
		logger,
		validator,
		handler.NewAuthHandler(authSvc),
		handler.NewMetricsHandler(metricsSvc),
		handler.NewTraceHandler(traceSvc),
		handler.NewFusionHandler(fusionSvc, logger),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Console API started", zap.String("addr", addr))

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("listen failed", zap.Error(err))
	}
}
