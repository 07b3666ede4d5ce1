package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra"
	"go.uber.org/zap"
)

// VerifierClient — адаптер сервиса верификации лица.
// Запрос: multipart с байтами изображения. Ответ: JSON с confidence score.
type VerifierClient struct {
	baseURL string
	timeout time.Duration
	hc      *http.Client
	rel     *Reliability
	logger  *zap.Logger
}

func NewVerifierClient(cfg infra.ServiceEndpoint, rel *Reliability, logger *zap.Logger) *VerifierClient {
	return &VerifierClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		hc:      newHTTPClient(cfg.ConnectTimeout),
		rel:     rel,
		logger:  logger.Named("verifier-client"),
	}
}

func (c *VerifierClient) ID() domain.ServiceID { return domain.ServiceVerifier }

// verifierResponse — минимальная форма ответа, которую потребляет фьюжн.
// Поля-указатели нужны для строгой валидации: отсутствие confidence/score —
// это InvalidResponse, а не «нулевая уверенность».
type verifierResponse struct {
	Verified   *bool    `json:"verified"`
	Confidence *float64 `json:"confidence"`
	Score      *float64 `json:"score"` // реальный сервис шлет score в части версий
	PersonID   string   `json:"person_id"`
}

// Call выполняет верификацию с собственным per-service таймаутом.
// Любой исход типизирован: наружу ошибки не выходят никогда.
func (c *VerifierClient) Call(ctx context.Context, in *domain.IdentifyInput) domain.ServiceResult {
	start := time.Now()
	res := domain.ServiceResult{ServiceID: domain.ServiceVerifier}

	// Контрактная проверка до единого байта в сети.
	// Невалидное расширение — интеграционный баг, а не сетевой отказ.
	if err := checkImageName(in.ImageName); err != nil {
		res.Status = domain.StatusInvalidResponse
		res.Error = err.Error()
		res.Latency = time.Since(start)
		return res
	}

	// Per-service таймаут живет внутри клиента, не у диспетчера
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var parsed verifierResponse
	var shapeErr error

	err := c.rel.Do(ctx, func(ctx context.Context) error {
		body, err := c.roundTrip(ctx, in)
		if err != nil {
			return err
		}
		// Парсинг вне ретраев: битую форму ответа повтор не исправит
		shapeErr = nil
		p, perr := parseVerifierBody(body)
		if perr != nil {
			shapeErr = perr
			return nil
		}
		parsed = p
		return nil
	})

	res.Latency = time.Since(start)

	switch {
	case err == nil && shapeErr == nil:
		res.Status = domain.StatusSuccess
		res.Confidence = confidenceOf(parsed)
		if parsed.Verified != nil {
			res.Verified = *parsed.Verified
		}
		res.PersonID = parsed.PersonID
	case err == nil:
		// Ответ дошел, но не прошел валидацию формы — НЕ превращаем в "no match"
		res.Status = domain.StatusInvalidResponse
		res.Error = shapeErr.Error()
		c.logger.Warn("verifier contract violation", zap.Error(shapeErr))
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = domain.StatusTimeout
		res.Error = fmt.Sprintf("verifier timeout after %v", c.timeout)
	default:
		res.Status = domain.StatusTransportError
		res.Error = err.Error()
	}
	return res
}

// roundTrip — один сырой HTTP обмен (ретраи навешивает Reliability)
func (c *VerifierClient) roundTrip(ctx context.Context, in *domain.IdentifyInput) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, in.ImageName))
	h.Set("Content-Type", "image/"+imageExt(in.ImageName))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(in.Image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

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
		return nil, &ThrottleError{RetryAfter: retryAfterOf(resp), Cause: fmt.Errorf("verifier HTTP 429")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("verifier HTTP error: %d", resp.StatusCode)
	}
	return body, nil
}

func parseVerifierBody(body []byte) (verifierResponse, error) {
	var p verifierResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("verifier response is not valid JSON: %w", err)
	}
	if p.Confidence == nil && p.Score == nil {
		return p, errors.New("verifier response lacks confidence/score field")
	}
	score := confidenceOf(p)
	if score < 0 || score > 1 {
		return p, fmt.Errorf("verifier confidence %.4f out of [0,1]", score)
	}
	return p, nil
}

func confidenceOf(p verifierResponse) float64 {
	if p.Confidence != nil {
		return *p.Confidence
	}
	if p.Score != nil {
		return *p.Score
	}
	return 0
}

var validImageExts = map[string]struct{}{"jpg": {}, "jpeg": {}, "png": {}}

func checkImageName(name string) error {
	ext := imageExt(name)
	if _, ok := validImageExts[ext]; !ok {
		return fmt.Errorf("invalid image extension %q, want .jpg/.jpeg/.png", ext)
	}
	return nil
}

func imageExt(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

func retryAfterOf(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return time.Second
}

// newHTTPClient собирает транспорт с отдельным connect-таймаутом.
// Общий таймаут запроса задает контекст в Call.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
			MaxIdleConnsPerHost: 8,
		},
	}
}
