package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"go.uber.org/zap"
)

func TestParseConfigSignal(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    domain.FusionConfig
		wantErr bool
	}{
		{
			name:    "валидный delta",
			payload: "0.8:0.05:delta",
			want:    domain.FusionConfig{Threshold: 0.8, Margin: 0.05, Method: domain.MethodDelta},
		},
		{
			name:    "валидный tau",
			payload: "0.6:0:tau",
			want:    domain.FusionConfig{Threshold: 0.6, Margin: 0, Method: domain.MethodTau},
		},
		{"мало частей", "0.8:delta", domain.FusionConfig{}, true},
		{"нечисловой threshold", "abc:0.1:delta", domain.FusionConfig{}, true},
		{"threshold вне диапазона", "1.5:0.1:delta", domain.FusionConfig{}, true},
		{"неизвестный метод", "0.8:0.1:sigma", domain.FusionConfig{}, true},
		{"пустой payload", "", domain.FusionConfig{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseConfigSignal(tc.payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func TestConfigSignal_RoundTrip(t *testing.T) {
	// Console сериализует тем же форматом, который читает шлюз
	orig := domain.FusionConfig{Threshold: 0.85, Margin: 0.07, Method: domain.MethodDelta}

	parsed, err := ParseConfigSignal(ConfigSignal(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, parsed)
}

func TestConfigManager_CurrentReturnsDefaults(t *testing.T) {
	defaults := domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: domain.MethodDelta}
	m := NewConfigManager(defaults, nil, zap.NewNop())

	assert.Equal(t, defaults, m.Current())
}

func TestConfigManager_ApplyValidConfig(t *testing.T) {
	m := NewConfigManager(
		domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: domain.MethodDelta},
		nil, zap.NewNop())

	next := domain.FusionConfig{Threshold: 0.9, Margin: 0.02, Method: domain.MethodTau}
	m.apply(next, "test")

	assert.Equal(t, next, m.Current())
}

func TestConfigManager_RejectsInvalidConfig(t *testing.T) {
	defaults := domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: domain.MethodDelta}
	m := NewConfigManager(defaults, nil, zap.NewNop())

	// Невалидная политика никогда не доезжает до запросов
	m.apply(domain.FusionConfig{Threshold: 2.0, Margin: 0.1, Method: domain.MethodDelta}, "test")
	assert.Equal(t, defaults, m.Current())

	m.apply(domain.FusionConfig{Threshold: 0.5, Margin: -1, Method: domain.MethodDelta}, "test")
	assert.Equal(t, defaults, m.Current())
}

func TestConfigManager_SnapshotIsolation(t *testing.T) {
	m := NewConfigManager(
		domain.FusionConfig{Threshold: 0.75, Margin: 0.1, Method: domain.MethodDelta},
		nil, zap.NewNop())

	// Снапшот не меняется после горячего обновления
	snapshot := m.Current()
	m.apply(domain.FusionConfig{Threshold: 0.9, Margin: 0.05, Method: domain.MethodDelta}, "test")

	assert.Equal(t, 0.75, snapshot.Threshold)
	assert.Equal(t, 0.9, m.Current().Threshold)
}
