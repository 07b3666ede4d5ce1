package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/clients"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"go.uber.org/zap"
)

func testInput() *domain.IdentifyInput {
	return &domain.IdentifyInput{
		RequestID: "req-test",
		Image:     []byte{0xFF, 0xD8},
		ImageName: "face.jpg",
		Query:     "как оформить пропуск",
	}
}

func TestDispatch_CollectsAllResults(t *testing.T) {
	d := NewDispatcher([]clients.ServiceCaller{
		clients.MockVerifierOK(0.91, 10*time.Millisecond),
		clients.MockChatbotOK("ответ", 20*time.Millisecond),
	}, time.Second, zap.NewNop())

	set, err := d.Dispatch(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, set, 2)

	v, ok := set.Verifier()
	require.True(t, ok)
	assert.Equal(t, 0.91, v.Confidence)
	assert.Equal(t, "P-042", v.PersonID)

	cb, ok := set.Chatbot()
	require.True(t, ok)
	assert.Equal(t, "ответ", cb.Answer)
}

func TestDispatch_RunsConcurrently(t *testing.T) {
	// Два клиента по 80мс: последовательный запуск занял бы >160мс
	const each = 80 * time.Millisecond
	d := NewDispatcher([]clients.ServiceCaller{
		clients.MockVerifierOK(0.9, each),
		clients.MockChatbotOK("ок", each),
	}, time.Second, zap.NewNop())

	start := time.Now()
	set, err := d.Dispatch(context.Background(), testInput())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Less(t, elapsed, 2*each, "клиенты должны вызываться конкурентно")
}

func TestDispatch_FailureIsolation(t *testing.T) {
	// Отказ одного сервиса не мешает результату другого дойти до выборки
	d := NewDispatcher([]clients.ServiceCaller{
		&clients.MockCaller{
			Service: domain.ServiceVerifier,
			Latency: 5 * time.Millisecond,
			Result:  domain.ServiceResult{Status: domain.StatusTransportError, Error: "connection refused"},
		},
		clients.MockChatbotOK("ответ", 5*time.Millisecond),
	}, time.Second, zap.NewNop())

	set, err := d.Dispatch(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, set, 2)

	v, _ := set.Verifier()
	assert.Equal(t, domain.StatusTransportError, v.Status)
	cb, _ := set.Chatbot()
	assert.True(t, cb.OK())
	assert.Equal(t, 1, set.SuccessCount())
}

func TestDispatch_OverallDeadlineExcludesSlowService(t *testing.T) {
	// Общий дедлайн 50мс: медленный чат-бот (500мс) просто отсутствует в выборке
	d := NewDispatcher([]clients.ServiceCaller{
		clients.MockVerifierOK(0.9, 5*time.Millisecond),
		clients.MockChatbotOK("поздно", 500*time.Millisecond),
	}, 50*time.Millisecond, zap.NewNop())

	set, err := d.Dispatch(context.Background(), testInput())
	require.NoError(t, err, "истекший дедлайн — не ошибка")

	_, hasVerifier := set.Verifier()
	assert.True(t, hasVerifier)
	_, hasChatbot := set.Chatbot()
	assert.False(t, hasChatbot, "не успевший сервис не должен попасть в выборку")
}

func TestDispatch_DeadlineShorterThanAllClients(t *testing.T) {
	// Валидная конфигурация: на выходе пустая, но корректная выборка
	d := NewDispatcher([]clients.ServiceCaller{
		clients.MockVerifierOK(0.9, 300*time.Millisecond),
		clients.MockChatbotOK("поздно", 300*time.Millisecond),
	}, 20*time.Millisecond, zap.NewNop())

	set, err := d.Dispatch(context.Background(), testInput())
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestDispatch_CallerCancellation(t *testing.T) {
	d := NewDispatcher([]clients.ServiceCaller{
		clients.MockVerifierOK(0.9, 300*time.Millisecond),
		clients.MockChatbotOK("поздно", 300*time.Millisecond),
	}, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Dispatch(ctx, testInput())
	assert.ErrorIs(t, err, context.Canceled,
		"отмена вызывающего — единственный случай ошибки Dispatch")
}
