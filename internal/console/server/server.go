package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/console/handler"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler    *handler.AuthHandler    // /auth/token
	metricsHandler *handler.MetricsHandler // /v1/metrics/*
	traceHandler   *handler.TraceHandler   // /v1/traces
	fusionHandler  *handler.FusionHandler  // /v1/fusion/config
}

// NewConsoleServer инициализирует сервер аналитики со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	metricsH *handler.MetricsHandler,
	traceH *handler.TraceHandler,
	fusionH *handler.FusionHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		cfg:            cfg,
		authValidator:  validator,
		authHandler:    authH,
		metricsHandler: metricsH,
		traceHandler:   traceH,
		fusionHandler:  fusionH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Агрегаты поверх персистентных трасс (читатели TraceRecorder)
		r.Route("/v1/metrics", func(r chi.Router) {
			r.Get("/identification-rate", s.metricsHandler.GetIdentificationRate)
			r.Get("/query-statistics", s.metricsHandler.GetQueryStatistics)
		})

		// Свежие трассы для отладки ("most recent trace" access)
		r.Get("/v1/traces", s.traceHandler.GetTraces)

		// Политика решения кластера (горячее обновление через Redis)
		r.Route("/v1/fusion", func(r chi.Router) {
			r.Get("/config", s.fusionHandler.GetConfig)
			r.Put("/config", s.fusionHandler.UpdateConfig) // fusion.write scope
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
