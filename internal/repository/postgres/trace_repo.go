package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

type TraceRepo struct {
	db *sql.DB
}

func NewTraceRepo(connString string) *TraceRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &TraceRepo{db: db}
}

// Ping проверяет доступность базы при старте
func (r *TraceRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WriteBatch пишет пачку трасс одним INSERT.
// Дубликаты по request_id возможны (at-least-once) — дедупликация на читателях.
func (r *TraceRepo) WriteBatch(ctx context.Context, records []domain.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице traces
	numFields := 13
	placeholderStr := ""
	vals := make([]interface{}, 0, len(records)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, rec := range records {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12, p+13)

		results, _ := json.Marshal(rec.Results)
		config, _ := json.Marshal(rec.Config)

		vals = append(vals,
			rec.ID, rec.RequestID, rec.Query, rec.Provider, rec.ImageName,
			results, string(rec.Decision.Outcome), string(rec.Decision.Reason),
			rec.Decision.SuccessfulServices, rec.Decision.Confidence,
			config, rec.ProcessingMs, rec.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO traces (id, request_id, query, provider, image_name, results, outcome, reason, successful_services, confidence, config, processing_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// FetchRecent отдает свежие трассы (timestamp DESC) с опциональными фильтрами.
// Логика фильтрации (пустые строки или конкретные значения) живет здесь.
func (r *TraceRepo) FetchRecent(ctx context.Context, requestID, outcome string, limit int) ([]domain.TraceRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, request_id, query, provider, image_name, results, outcome, reason,
		       successful_services, confidence, config, processing_ms, timestamp
		FROM traces
		WHERE ($1 = '' OR request_id = $1)
		  AND ($2 = '' OR outcome = $2)
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, requestID, outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to fetch traces: %w", err)
	}
	defer rows.Close()

	var out []domain.TraceRecord
	for rows.Next() {
		var rec domain.TraceRecord
		var results, config []byte
		var outcomeStr, reasonStr string

		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.Query, &rec.Provider, &rec.ImageName,
			&results, &outcomeStr, &reasonStr,
			&rec.Decision.SuccessfulServices, &rec.Decision.Confidence,
			&config, &rec.ProcessingMs, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan trace: %w", err)
		}

		rec.Decision.Outcome = domain.Outcome(outcomeStr)
		rec.Decision.Reason = domain.Reason(reasonStr)
		// Снапшоты десериализуем best-effort: битый jsonb не должен ронять чтение
		_ = json.Unmarshal(results, &rec.Results)
		_ = json.Unmarshal(config, &rec.Config)
		rec.Decision.Method = rec.Config.Method

		out = append(out, rec)
	}
	return out, rows.Err()
}
