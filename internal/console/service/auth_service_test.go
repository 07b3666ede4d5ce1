package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type stubUserRepo struct {
	user *domain.User
}

func (r *stubUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	if r.user != nil && r.user.Username == username {
		return r.user, nil
	}
	return nil, nil // пользователь не найден — не ошибка
}

func testUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           "u-1",
		Username:     "operator",
		PasswordHash: string(hash),
		Scopes:       map[string]bool{"metrics.read": true, "fusion.write": true},
	}
}

func TestGenerateToken_Success(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewAuthService(&stubUserRepo{user: testUser(t, "s3cret")}, key, time.Hour)

	resp, err := svc.GenerateToken(context.Background(), "operator", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.InDelta(t, 3600, resp.ExpiresIn, 5)

	// Токен верифицируется публичной половиной и несет права из БД
	parsed, err := jwt.ParseWithClaims(resp.AccessToken, &domain.CustomClaims{},
		func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })
	require.NoError(t, err)

	claims := parsed.Claims.(*domain.CustomClaims)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "idfuse-console", claims.Issuer)
	assert.True(t, claims.Scopes["fusion.write"])
	assert.False(t, claims.Scopes["identify"])
}

func TestGenerateToken_InvalidCredentials(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewAuthService(&stubUserRepo{user: testUser(t, "s3cret")}, key, time.Hour)

	// Ответ не различает «нет пользователя» и «неверный пароль»
	_, err = svc.GenerateToken(context.Background(), "operator", "wrong")
	require.Error(t, err)
	wrongUser := err.Error()

	_, err = svc.GenerateToken(context.Background(), "ghost", "s3cret")
	require.Error(t, err)
	assert.Equal(t, wrongUser, err.Error())
}
