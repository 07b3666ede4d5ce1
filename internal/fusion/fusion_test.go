package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

func deltaCfg(t, m float64) domain.FusionConfig {
	return domain.FusionConfig{Threshold: t, Margin: m, Method: domain.MethodDelta}
}

func verifierOK(score float64) domain.ServiceResult {
	return domain.ServiceResult{
		ServiceID:  domain.ServiceVerifier,
		Status:     domain.StatusSuccess,
		Confidence: score,
		Verified:   score >= 0.5,
		PersonID:   "P-042",
	}
}

func chatbotOK() domain.ServiceResult {
	return domain.ServiceResult{
		ServiceID: domain.ServiceChatbot,
		Status:    domain.StatusSuccess,
		Answer:    "порядок оформления пропуска описан в разделе 4",
	}
}

func failed(id domain.ServiceID, status domain.CallStatus) domain.ServiceResult {
	return domain.ServiceResult{ServiceID: id, Status: status, Error: "boom"}
}

func TestFuse_NoSuccessfulServices(t *testing.T) {
	cases := map[string]domain.ResultSet{
		"пустая выборка (оба сервиса не успели до дедлайна)": {},
		"оба упали по транспорту": {
			domain.ServiceVerifier: failed(domain.ServiceVerifier, domain.StatusTransportError),
			domain.ServiceChatbot:  failed(domain.ServiceChatbot, domain.StatusTransportError),
		},
		"таймаут + битый ответ": {
			domain.ServiceVerifier: failed(domain.ServiceVerifier, domain.StatusTimeout),
			domain.ServiceChatbot:  failed(domain.ServiceChatbot, domain.StatusInvalidResponse),
		},
	}

	for name, set := range cases {
		t.Run(name, func(t *testing.T) {
			d := Fuse(set, deltaCfg(0.75, 0.1))
			assert.Equal(t, domain.OutcomeUnknown, d.Outcome)
			assert.Equal(t, domain.ReasonNoSuccessfulServices, d.Reason)
			assert.Equal(t, 0, d.SuccessfulServices)
		})
	}
}

func TestFuseDelta_Bands(t *testing.T) {
	// t=0.75, m=0.10: [0, 0.75) -> NoMatch, [0.75, 0.85) -> Unknown, [0.85, 1] -> Match
	cfg := deltaCfg(0.75, 0.10)

	cases := []struct {
		name    string
		score   float64
		outcome domain.Outcome
		reason  domain.Reason
	}{
		{"сильно ниже порога", 0.30, domain.OutcomeNoMatch, domain.ReasonBelowThreshold},
		{"чуть ниже порога", 0.7499, domain.OutcomeNoMatch, domain.ReasonBelowThreshold},
		{"ровно порог — зона сомнения", 0.75, domain.OutcomeUnknown, domain.ReasonWithinMargin},
		{"внутри маржи", 0.78, domain.OutcomeUnknown, domain.ReasonWithinMargin},
		{"ровно верхняя граница", 0.85, domain.OutcomeMatch, domain.ReasonNone},
		{"уверенный матч", 0.97, domain.OutcomeMatch, domain.ReasonNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := domain.ResultSet{
				domain.ServiceVerifier: verifierOK(tc.score),
				domain.ServiceChatbot:  chatbotOK(),
			}
			d := Fuse(set, cfg)
			assert.Equal(t, tc.outcome, d.Outcome)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, tc.score, d.Confidence)
			assert.Equal(t, 2, d.SuccessfulServices)
		})
	}
}

func TestFuseDelta_ChatbotFailureDoesNotBlockMatch(t *testing.T) {
	// Отказ чат-бота не мешает верификации личности
	set := domain.ResultSet{
		domain.ServiceVerifier: verifierOK(0.80),
		domain.ServiceChatbot:  failed(domain.ServiceChatbot, domain.StatusTimeout),
	}
	d := Fuse(set, deltaCfg(0.70, 0.05))

	assert.Equal(t, domain.OutcomeMatch, d.Outcome)
	assert.Equal(t, 1, d.SuccessfulServices)
	assert.Equal(t, 0.80, d.Confidence)
}

func TestFuseDelta_ChatbotOnlyIsNotAMatch(t *testing.T) {
	// Чат-бот identity-агностичен: его успех не подтверждает личность
	cases := map[string]domain.ResultSet{
		"верификатор не ответил вовсе": {
			domain.ServiceChatbot: chatbotOK(),
		},
		"верификатор упал по транспорту": {
			domain.ServiceVerifier: failed(domain.ServiceVerifier, domain.StatusTransportError),
			domain.ServiceChatbot:  chatbotOK(),
		},
		"верификатор вернул битую форму": {
			domain.ServiceVerifier: failed(domain.ServiceVerifier, domain.StatusInvalidResponse),
			domain.ServiceChatbot:  chatbotOK(),
		},
	}

	for name, set := range cases {
		t.Run(name, func(t *testing.T) {
			d := Fuse(set, deltaCfg(0.75, 0.1))
			assert.Equal(t, domain.OutcomeUnknown, d.Outcome)
			assert.Equal(t, domain.ReasonMissingIdentitySignal, d.Reason)
		})
	}
}

func TestFuseDelta_SaturationClamp(t *testing.T) {
	// t+m > 1: верхняя граница зажимается в 1.0, идеальный score дает Match
	cfg := deltaCfg(0.95, 0.10)

	set := domain.ResultSet{domain.ServiceVerifier: verifierOK(1.0)}
	d := Fuse(set, cfg)
	require.Equal(t, domain.OutcomeMatch, d.Outcome)

	set = domain.ResultSet{domain.ServiceVerifier: verifierOK(0.99)}
	d = Fuse(set, cfg)
	assert.Equal(t, domain.OutcomeUnknown, d.Outcome)
	assert.Equal(t, domain.ReasonWithinMargin, d.Reason)
}

func TestFuseDelta_ZeroMargin(t *testing.T) {
	// m=0 вырождает зону сомнения: ровно порог — уже Match
	cfg := deltaCfg(0.75, 0)

	d := Fuse(domain.ResultSet{domain.ServiceVerifier: verifierOK(0.75)}, cfg)
	assert.Equal(t, domain.OutcomeMatch, d.Outcome)

	d = Fuse(domain.ResultSet{domain.ServiceVerifier: verifierOK(0.7499)}, cfg)
	assert.Equal(t, domain.OutcomeNoMatch, d.Outcome)
}

func TestFuse_Deterministic(t *testing.T) {
	set := domain.ResultSet{
		domain.ServiceVerifier: verifierOK(0.78),
		domain.ServiceChatbot:  chatbotOK(),
	}
	cfg := deltaCfg(0.75, 0.1)

	first := Fuse(set, cfg)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Fuse(set, cfg))
	}
}

func TestFuseDelta_MonotoneInScore(t *testing.T) {
	// Рост score никогда не ухудшает вердикт: NoMatch -> Unknown -> Match
	rank := map[domain.Outcome]int{
		domain.OutcomeNoMatch: 0,
		domain.OutcomeUnknown: 1,
		domain.OutcomeMatch:   2,
	}
	cfg := deltaCfg(0.6, 0.2)

	prev := -1
	for score := 0.0; score <= 1.0; score += 0.01 {
		d := Fuse(domain.ResultSet{domain.ServiceVerifier: verifierOK(score)}, cfg)
		cur := rank[d.Outcome]
		require.GreaterOrEqual(t, cur, prev, "score=%.2f", score)
		prev = cur
	}
}

func TestFuseTau_QuorumRequired(t *testing.T) {
	cfg := domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: domain.MethodTau}

	// Оба успеха + score над порогом -> Match
	d := Fuse(domain.ResultSet{
		domain.ServiceVerifier: verifierOK(0.90),
		domain.ServiceChatbot:  chatbotOK(),
	}, cfg)
	assert.Equal(t, domain.OutcomeMatch, d.Outcome)

	// Один успех из двух — кворума нет, даже при высоком score
	d = Fuse(domain.ResultSet{
		domain.ServiceVerifier: verifierOK(0.90),
		domain.ServiceChatbot:  failed(domain.ServiceChatbot, domain.StatusTimeout),
	}, cfg)
	assert.Equal(t, domain.OutcomeUnknown, d.Outcome)
	assert.Equal(t, domain.ReasonQuorumNotReached, d.Reason)

	// Порог по-прежнему обязателен
	d = Fuse(domain.ResultSet{
		domain.ServiceVerifier: verifierOK(0.50),
		domain.ServiceChatbot:  chatbotOK(),
	}, cfg)
	assert.Equal(t, domain.OutcomeNoMatch, d.Outcome)
	assert.Equal(t, domain.ReasonBelowThreshold, d.Reason)
}

func TestFuse_UnsupportedMethod(t *testing.T) {
	// Прямое использование пакета с невалидной стратегией не паникует
	cfg := domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: "sigma"}
	d := Fuse(domain.ResultSet{domain.ServiceVerifier: verifierOK(0.99)}, cfg)

	assert.Equal(t, domain.OutcomeUnknown, d.Outcome)
	assert.Equal(t, domain.ReasonUnsupportedMethod, d.Reason)
}

func TestFusionConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     domain.FusionConfig
		wantErr bool
	}{
		{"валидный delta", deltaCfg(0.75, 0.1), false},
		{"валидный tau", domain.FusionConfig{Threshold: 0.5, Margin: 0, Method: domain.MethodTau}, false},
		{"насыщение t+m>1 — валидно", deltaCfg(0.95, 0.2), false},
		{"threshold > 1", deltaCfg(1.1, 0.1), true},
		{"threshold < 0", deltaCfg(-0.1, 0.1), true},
		{"отрицательная маржа", deltaCfg(0.75, -0.1), true},
		{"неизвестный метод", domain.FusionConfig{Threshold: 0.5, Method: "sigma"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
