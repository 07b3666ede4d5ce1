// Package fusion — чистое ядро принятия решения.
// Fuse детерминирован, не делает I/O и не знает ни про HTTP, ни про хранилище:
// та же выборка результатов и та же конфигурация всегда дают идентичный Decision.
package fusion

import (
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// Fuse сливает частичные (возможно конфликтующие) результаты сервисов
// в единый вердикт по выбранной стратегии.
//
// Контракт деградации: худший исход при любой комбинации отказов —
// Decision{Unknown}, никогда не ошибка и не паника.
func Fuse(set domain.ResultSet, cfg domain.FusionConfig) domain.Decision {
	d := domain.Decision{
		Outcome:            domain.OutcomeUnknown,
		SuccessfulServices: set.SuccessCount(),
		Method:             cfg.Method,
	}

	// Ноль успехов — спроектированный fallback тотальной недоступности.
	// Достижим ТОЛЬКО при реальном отсутствии успехов: клиентская валидация
	// отличает InvalidResponse от честного «не распознан», поэтому сюда
	// не попадают контрактные баги, замаскированные под отказ.
	if d.SuccessfulServices == 0 {
		d.Reason = domain.ReasonNoSuccessfulServices
		return d
	}

	switch cfg.Method {
	case domain.MethodDelta:
		return fuseDelta(set, cfg, d)
	case domain.MethodTau:
		return fuseTau(set, cfg, d)
	default:
		// Из бинарей недостижимо (конфиг валидируется на старте);
		// страхуем прямое использование пакета как библиотеки
		d.Reason = domain.ReasonUnsupportedMethod
		return d
	}
}

// fuseDelta — эталонная δ-стратегия: сравнение score верификатора
// с threshold и threshold+margin.
//
//	score <  t          -> NoMatch (below_threshold)
//	t <= score < upper  -> Unknown (within_margin): подозрительно, но не уверенно
//	score >= upper      -> Match
//
// Насыщение: при t+m > 1 верхняя граница зажимается в 1.0, иначе Match был бы
// недостижим даже при идеальном score — конфигурационная причуда превратилась
// бы в тихий отказ всей идентификации.
func fuseDelta(set domain.ResultSet, cfg domain.FusionConfig, d domain.Decision) domain.Decision {
	v, ok := set.Verifier()
	if !ok || !v.OK() {
		// Успешен только чат-бот: нормативный ответ есть, сигнала личности нет.
		// Чат-бот не может подтвердить личность ни при каком score.
		d.Reason = domain.ReasonMissingIdentitySignal
		return d
	}

	score := v.Confidence
	d.Confidence = score

	upper := cfg.Threshold + cfg.Margin
	if upper > 1.0 {
		upper = 1.0
	}

	switch {
	case score < cfg.Threshold:
		d.Outcome = domain.OutcomeNoMatch
		d.Reason = domain.ReasonBelowThreshold
	case score < upper:
		d.Reason = domain.ReasonWithinMargin
	default:
		d.Outcome = domain.OutcomeMatch
		d.Reason = domain.ReasonNone
	}
	return d
}

// fuseTau — τ-стратегия: мажоритарный кворум поверх порога верификатора.
// Match требует И строгого большинства успешных сервисов, И score >= threshold.
// Разногласия разрешаются консервативно: предпочитаем Unknown, а не Match.
func fuseTau(set domain.ResultSet, cfg domain.FusionConfig, d domain.Decision) domain.Decision {
	v, ok := set.Verifier()
	if !ok || !v.OK() {
		d.Reason = domain.ReasonMissingIdentitySignal
		return d
	}

	score := v.Confidence
	d.Confidence = score

	if score < cfg.Threshold {
		d.Outcome = domain.OutcomeNoMatch
		d.Reason = domain.ReasonBelowThreshold
		return d
	}

	// Кворум считаем от числа сконфигурированных сервисов
	quorum := len(domain.ConfiguredServices)/2 + 1
	if d.SuccessfulServices < quorum {
		d.Reason = domain.ReasonQuorumNotReached
		return d
	}

	d.Outcome = domain.OutcomeMatch
	d.Reason = domain.ReasonNone
	return d
}
