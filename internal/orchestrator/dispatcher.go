package orchestrator

import (
	"context"
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/clients"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// Dispatcher запускает всех сконфигурированных клиентов конкурентно и собирает
// ResultSet: слот на сервис, каждый пишется ровно один раз. Сервисы независимы
// и никогда не сериализуются — отказ одного не мешает результату другого
// дойти до фьюжна (изоляция отказов и есть смысл этого компонента).
type Dispatcher struct {
	callers []clients.ServiceCaller
	overall time.Duration
	logger  *zap.Logger
}

func NewDispatcher(callers []clients.ServiceCaller, overall time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		callers: callers,
		overall: overall,
		logger:  logger.Named("dispatcher"),
	}
}

// Dispatch блокируется до первого из двух событий: все сервисы ответили или
// истек общий дедлайн. Сервис, не успевший к дедлайну, просто отсутствует
// в ResultSet — это НЕ Timeout (тот статус принадлежит per-service таймауту
// внутри клиента). Общий дедлайн короче клиентских таймаутов — валидная
// конфигурация, на выходе корректный (возможно пустой) ResultSet.
//
// Ошибка возвращается в единственном случае — отмена запроса вызывающим.
// Частичный ResultSet при отмене вызывающий обязан выбросить: ни фьюжна,
// ни трассы по отмененному запросу быть не должно.
func (d *Dispatcher) Dispatch(ctx context.Context, in *domain.IdentifyInput) (domain.ResultSet, error) {
	// Структурная конкурентность: оба вызова живут под одним скоупом отмены.
	// Выход из Dispatch (дедлайн/отмена) гасит все in-flight вызовы.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Буфер на полный состав: отставший воркер допишет результат и завершится,
	// даже если его уже никто не ждет
	done := make(chan domain.ServiceResult, len(d.callers))
	for _, c := range d.callers {
		go func(c clients.ServiceCaller) {
			done <- c.Call(callCtx, in)
		}(c)
	}

	deadline := time.NewTimer(d.overall)
	defer deadline.Stop()

	set := make(domain.ResultSet, len(d.callers))
	for len(set) < len(d.callers) {
		select {
		case res := <-done:
			set[res.ServiceID] = res
		case <-deadline.C:
			d.logger.Warn("overall deadline reached with pending services",
				zap.String("request_id", in.RequestID),
				zap.Int("collected", len(set)),
				zap.Int("configured", len(d.callers)))
			return set, nil
		case <-ctx.Done():
			// Отмена вызывающего: гасим in-flight и отдаем частичный набор,
			// который будет выброшен, не персистирован
			return set, ctx.Err()
		}
	}
	return set, nil
}
