package postgres

import (
	"context"
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// windowDeltas — допустимые окна агрегации (как в /metrics/* API)
var windowDeltas = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

func windowStart(window string) time.Time {
	delta, ok := windowDeltas[window]
	if !ok {
		delta = 24 * time.Hour
	}
	return time.Now().UTC().Add(-delta)
}

// GetIdentificationStats — агрегат по вердиктам за окно.
// Уверенность усредняем только по трассам с валидным ответом верификатора,
// чтобы нули от отказов не размывали статистику.
func (r *TraceRepo) GetIdentificationStats(ctx context.Context, window string) (*domain.IdentificationStats, error) {
	s := &domain.IdentificationStats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'match'),
			COUNT(*) FILTER (WHERE outcome = 'no_match'),
			COUNT(*) FILTER (WHERE outcome = 'unknown'),
			COALESCE(AVG(confidence) FILTER (WHERE successful_services > 0), 0),
			COALESCE(MIN(confidence) FILTER (WHERE successful_services > 0), 0),
			COALESCE(MAX(confidence) FILTER (WHERE successful_services > 0), 0)
		FROM traces
		WHERE timestamp > $1`, windowStart(window)).Scan(
		&s.Total, &s.Matched, &s.NotMatched, &s.Unknown,
		&s.AvgConfidence, &s.MinConfidence, &s.MaxConfidence,
	)
	if err != nil {
		return nil, err
	}

	if s.Total > 0 {
		s.MatchRate = float64(s.Matched) / float64(s.Total)
	}
	return s, nil
}

// GetQueryStats — агрегат по времени обработки за окно.
// PERCENTILE_CONT дает честный P95 вместо приближений по бакетам.
func (r *TraceRepo) GetQueryStats(ctx context.Context, window string) (*domain.QueryStats, error) {
	s := &domain.QueryStats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(processing_ms), 0),
			COALESCE(MIN(processing_ms), 0),
			COALESCE(MAX(processing_ms), 0),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY processing_ms), 0)
		FROM traces
		WHERE timestamp > $1`, windowStart(window)).Scan(
		&s.TotalQueries, &s.AvgProcessingMs, &s.MinProcessingMs, &s.MaxProcessingMs, &s.P95ProcessingMs,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
