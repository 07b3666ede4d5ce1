package clients

import (
	"context"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// ServiceCaller — единая способность обоих внешних сервисов:
// один таймированный внешний вызов с типизированным исходом.
// Dispatcher пишется один раз против этого интерфейса и не знает,
// кто на том конце — верификатор или чат-бот.
type ServiceCaller interface {
	ID() domain.ServiceID
	// Call сам укладывается в свой per-service таймаут и возвращает
	// StatusTimeout вместо того, чтобы блокировать вызывающего.
	// Ошибки наружу не выходят — любой отказ уже типизирован в ServiceResult.
	Call(ctx context.Context, input *domain.IdentifyInput) domain.ServiceResult
}
