package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Reliability оборачивает сырой сетевой раунд-трип клиента:
// Rate Limiter -> Circuit Breaker -> Retry. Ретраим только транспортный класс
// отказов — битый по форме ответ (контрактный баг) ретраем не лечится и
// должен всплыть немедленно как InvalidResponse.
type Reliability struct {
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewReliability настраивает предохранитель для одного внешнего сервиса.
// onStateChange дергается при переключении CB (для prometheus gauge).
func NewReliability(name string, onStateChange func(name string, open bool)) *Reliability {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(name, to == gobreaker.StateOpen)
			}
		},
	})

	// Лимитер на сервис: 100 rps с бёрстом 20
	limiter := rate.NewLimiter(rate.Limit(100), 20)

	return &Reliability{cb: cb, limiter: limiter}
}

// ErrCircuitOpen возвращается, когда CB блокирует трафик к сервису
var ErrCircuitOpen = errors.New("circuit breaker open")

// Do выполняет fn с ретраями под предохранителем.
// fn получает контекст вызывающего (per-service таймаут уже внутри него).
func (w *Reliability) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если сервис вернул ThrottleError (считали Retry-After заголовок)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			return fn(ctx)
		})
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}
