package clients

import (
	"context"
	"math/rand/v2" // Используем v2 для Go 1.25
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// MockCaller — скриптуемый фейк внешнего сервиса для тестов и локального запуска.
// Уважает отмену контекста, как настоящий клиент.
type MockCaller struct {
	Service domain.ServiceID
	Latency time.Duration // 0 — случайная задержка 50-300мс
	Result  domain.ServiceResult
}

func (c *MockCaller) ID() domain.ServiceID { return c.Service }

func (c *MockCaller) Call(ctx context.Context, _ *domain.IdentifyInput) domain.ServiceResult {
	latency := c.Latency
	if latency == 0 {
		// В v2 используется rand.IntN (с большой N)
		latency = time.Duration(50+rand.IntN(250)) * time.Millisecond
	}

	start := time.Now()
	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return domain.ServiceResult{
			ServiceID: c.Service,
			Status:    domain.StatusTimeout,
			Error:     ctx.Err().Error(),
			Latency:   time.Since(start),
		}
	}

	res := c.Result
	res.ServiceID = c.Service
	res.Latency = time.Since(start)
	return res
}

// MockVerifierOK возвращает успешный результат верификатора с заданным score
func MockVerifierOK(confidence float64, latency time.Duration) *MockCaller {
	return &MockCaller{
		Service: domain.ServiceVerifier,
		Latency: latency,
		Result: domain.ServiceResult{
			Status:     domain.StatusSuccess,
			Confidence: confidence,
			Verified:   true,
			PersonID:   "P-042",
		},
	}
}

// MockChatbotOK возвращает успешный ответ чат-бота
func MockChatbotOK(answer string, latency time.Duration) *MockCaller {
	return &MockCaller{
		Service: domain.ServiceChatbot,
		Latency: latency,
		Result: domain.ServiceResult{
			Status: domain.StatusSuccess,
			Answer: answer,
		},
	}
}
