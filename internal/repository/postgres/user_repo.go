package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
)

// GetUserByUsername — поиск оператора Console по логину.
// Отсутствие пользователя — это nil, nil (не ошибка): сервис аутентификации
// отвечает одинаковым "invalid credentials" на оба случая.
func (r *TraceRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password_hash, role, scopes, created_at, updated_at
		FROM users WHERE username = $1`

	u := &domain.User{}
	var scopes []byte
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &scopes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(scopes, &u.Scopes); err != nil {
		return nil, err
	}
	return u, nil
}
