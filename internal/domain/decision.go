package domain

import "fmt"

// FusionMethod выбирает стратегию сравнения при слиянии результатов
type FusionMethod string

const (
	// MethodDelta — эталонная стратегия: сравнение score с threshold и threshold+margin
	MethodDelta FusionMethod = "delta"
	// MethodTau — мажоритарный кворум поверх порога верификатора
	MethodTau FusionMethod = "tau"
)

// Outcome — финальный вердикт фьюжна
type Outcome string

const (
	OutcomeMatch   Outcome = "match"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeUnknown Outcome = "unknown"
)

// Reason — машиночитаемый код, объясняющий Unknown/NoMatch
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonNoSuccessfulServices  Reason = "no_successful_services"
	ReasonBelowThreshold        Reason = "below_threshold"
	ReasonWithinMargin          Reason = "within_margin"
	ReasonMissingIdentitySignal Reason = "missing_identity_signal"
	ReasonQuorumNotReached      Reason = "quorum_not_reached"
	ReasonUnsupportedMethod     Reason = "unsupported_method"
)

// FusionConfig — неизменяемые в рамках запроса параметры политики решения.
// Threshold+Margin может превышать 1.0 — насыщение обрабатывает сам фьюжн.
type FusionConfig struct {
	Threshold float64      `json:"threshold" mapstructure:"threshold"` // [0,1]
	Margin    float64      `json:"margin" mapstructure:"margin"`       // >= 0
	Method    FusionMethod `json:"method" mapstructure:"method"`
}

// Validate отсекает заведомо битую конфигурацию на старте (fatal),
// чтобы per-request путь никогда не видел ConfigurationError
func (c FusionConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("fusion: threshold %.3f out of [0,1]", c.Threshold)
	}
	if c.Margin < 0 {
		return fmt.Errorf("fusion: margin %.3f must be >= 0", c.Margin)
	}
	switch c.Method {
	case MethodDelta, MethodTau:
	default:
		return fmt.Errorf("fusion: unsupported method %q", c.Method)
	}
	return nil
}

// Decision — единственный выход FusionPolicy на запрос.
// Создается ровно один раз, после создания не мутирует.
type Decision struct {
	Outcome            Outcome      `json:"outcome"`
	SuccessfulServices int          `json:"successful_services"`
	Reason             Reason       `json:"reason,omitempty"`
	Confidence         float64      `json:"confidence"`
	Method             FusionMethod `json:"method"`
}
