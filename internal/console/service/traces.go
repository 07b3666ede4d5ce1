package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// TraceProvider описывает контракт для чтения трасс.
// Используем доменную модель TraceRecord, чтобы сохранить единую модель данных.
type TraceProvider interface {
	FetchRecent(ctx context.Context, requestID, outcome string, limit int) ([]domain.TraceRecord, error)
}

type TraceService struct {
	repo TraceProvider
}

func NewTraceService(repo TraceProvider) *TraceService {
	return &TraceService{
		repo: repo,
	}
}

// FetchRecent запрашивает свежие трассы с фильтрацией.
// Логика фильтрации (пустые строки или конкретные значения) инкапсулирована в репозитории.
func (s *TraceService) FetchRecent(ctx context.Context, requestID, outcome string, limit int) ([]domain.TraceRecord, error) {
	traces, err := s.repo.FetchRecent(ctx, requestID, outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("trace_service: failed to fetch traces: %w", err)
	}

	// Гарантируем, что фронтенд получит пустой массив [], а не null
	if traces == nil {
		return []domain.TraceRecord{}, nil
	}
	return traces, nil
}
