package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"go.uber.org/zap"
)

func newTestVerifier(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*VerifierClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewVerifierClient(infra.ServiceEndpoint{
		BaseURL: srv.URL,
		Timeout: timeout,
	}, NewReliability("verifier-test", nil), zap.NewNop())
	return c, srv
}

func verifierInput() *domain.IdentifyInput {
	return &domain.IdentifyInput{
		RequestID: "req-1",
		Image:     []byte{0xFF, 0xD8, 0xFF},
		ImageName: "face.jpg",
	}
}

func TestVerifierCall_Success(t *testing.T) {
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/verify", r.URL.Path)

		// Сервис ждет multipart с файлом под именем "file"
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "face.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"verified": true, "confidence": 0.93, "person_id": "P-017"}`))
	}, time.Second)

	res := c.Call(context.Background(), verifierInput())

	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, 0.93, res.Confidence)
	assert.True(t, res.Verified)
	assert.Equal(t, "P-017", res.PersonID)
	assert.Equal(t, domain.ServiceVerifier, res.ServiceID)
	assert.Empty(t, res.Error)
}

func TestVerifierCall_ScoreFieldFallback(t *testing.T) {
	// Часть версий сервиса шлет score вместо confidence
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 0.71}`))
	}, time.Second)

	res := c.Call(context.Background(), verifierInput())

	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, 0.71, res.Confidence)
}

func TestVerifierCall_InvalidResponseIsNotTransport(t *testing.T) {
	// Ответ дошел, но форма битая — это контрактный баг, не сетевой отказ.
	// Статусы обязаны различаться, иначе живой сервис выглядит как лежащий.
	cases := []struct {
		name string
		body string
	}{
		{"не JSON", `<html>Internal Error</html>`},
		{"нет confidence и score", `{"verified": true, "person_id": "P-1"}`},
		{"confidence вне [0,1]", `{"confidence": 17.5}`},
		{"отрицательный score", `{"score": -0.2}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}, time.Second)

			res := c.Call(context.Background(), verifierInput())

			assert.Equal(t, domain.StatusInvalidResponse, res.Status)
			assert.NotEmpty(t, res.Error)
			assert.Zero(t, res.Confidence, "полезная нагрузка только при успехе")
		})
	}
}

func TestVerifierCall_BadExtensionFailsBeforeNetwork(t *testing.T) {
	var hits int
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
	}, time.Second)

	in := verifierInput()
	in.ImageName = "face.bmp"
	res := c.Call(context.Background(), in)

	assert.Equal(t, domain.StatusInvalidResponse, res.Status)
	assert.Zero(t, hits, "невалидное расширение не должно доходить до сети")
}

func TestVerifierCall_HTTPErrorIsTransport(t *testing.T) {
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	}, time.Second)

	res := c.Call(context.Background(), verifierInput())

	assert.Equal(t, domain.StatusTransportError, res.Status)
	assert.Contains(t, res.Error, "500")
}

func TestVerifierCall_Timeout(t *testing.T) {
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"confidence": 0.9}`))
	}, 30*time.Millisecond)

	res := c.Call(context.Background(), verifierInput())

	assert.Equal(t, domain.StatusTimeout, res.Status)
	assert.Contains(t, res.Error, "timeout")
}

func TestVerifierCall_RetriesTransientFailure(t *testing.T) {
	// Первые два ответа — 500, третий валидный: ретраи добивают до успеха
	var hits int
	c, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"confidence": 0.88}`))
	}, 5*time.Second)

	res := c.Call(context.Background(), verifierInput())

	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, 0.88, res.Confidence)
	assert.Equal(t, 3, hits)
}

func TestCheckImageName(t *testing.T) {
	assert.NoError(t, checkImageName("face.jpg"))
	assert.NoError(t, checkImageName("face.JPEG"))
	assert.NoError(t, checkImageName("face.png"))
	assert.Error(t, checkImageName("face.bmp"))
	assert.Error(t, checkImageName("face"))
	assert.Error(t, checkImageName(""))
}
