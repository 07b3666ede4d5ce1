package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"go.uber.org/zap"
)

// ChatbotClient — адаптер чат-бота по нормативным вопросам.
// Запрос: JSON {message, provider, k}. Ответ: JSON с текстом ответа.
// Сервис identity-агностичен: его успех никогда не подменяет подтверждение личности.
type ChatbotClient struct {
	baseURL         string
	timeout         time.Duration
	defaultProvider string
	defaultTopK     int
	hc              *http.Client
	rel             *Reliability
	logger          *zap.Logger
}

func NewChatbotClient(cfg infra.ServiceEndpoint, provider string, topK int, rel *Reliability, logger *zap.Logger) *ChatbotClient {
	return &ChatbotClient{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:         cfg.Timeout,
		defaultProvider: provider,
		defaultTopK:     topK,
		hc:              newHTTPClient(cfg.ConnectTimeout),
		rel:             rel,
		logger:          logger.Named("chatbot-client"),
	}
}

func (c *ChatbotClient) ID() domain.ServiceID { return domain.ServiceChatbot }

type chatbotRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
	K        int    `json:"k"`
}

type chatbotResponse struct {
	Answer   *string `json:"answer"`
	Response *string `json:"response"` // legacy-поле части провайдеров
}

func (c *ChatbotClient) Call(ctx context.Context, in *domain.IdentifyInput) domain.ServiceResult {
	start := time.Now()
	res := domain.ServiceResult{ServiceID: domain.ServiceChatbot}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	provider := in.Provider
	if provider == "" {
		provider = c.defaultProvider
	}
	topK := in.TopK
	if topK <= 0 {
		topK = c.defaultTopK
	}

	var answer string
	var shapeErr error

	err := c.rel.Do(ctx, func(ctx context.Context) error {
		body, err := c.roundTrip(ctx, chatbotRequest{Message: in.Query, Provider: provider, K: topK})
		if err != nil {
			return err
		}
		shapeErr = nil
		a, perr := parseChatbotBody(body)
		if perr != nil {
			shapeErr = perr
			return nil
		}
		answer = a
		return nil
	})

	res.Latency = time.Since(start)

	switch {
	case err == nil && shapeErr == nil:
		res.Status = domain.StatusSuccess
		res.Answer = answer
	case err == nil:
		res.Status = domain.StatusInvalidResponse
		res.Error = shapeErr.Error()
		c.logger.Warn("chatbot contract violation", zap.Error(shapeErr))
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = domain.StatusTimeout
		res.Error = fmt.Sprintf("chatbot timeout after %v", c.timeout)
	default:
		res.Status = domain.StatusTransportError
		res.Error = err.Error()
	}
	return res
}

func (c *ChatbotClient) roundTrip(ctx context.Context, payload chatbotRequest) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ThrottleError{RetryAfter: retryAfterOf(resp), Cause: fmt.Errorf("chatbot HTTP 429")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("chatbot HTTP error: %d", resp.StatusCode)
	}
	return body, nil
}

func parseChatbotBody(body []byte) (string, error) {
	var p chatbotResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("chatbot response is not valid JSON: %w", err)
	}
	switch {
	case p.Answer != nil && *p.Answer != "":
		return *p.Answer, nil
	case p.Response != nil && *p.Response != "":
		return *p.Response, nil
	}
	return "", errors.New("chatbot response lacks answer/response field")
}
