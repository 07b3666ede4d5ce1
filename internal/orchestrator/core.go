package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/fusion"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/infra/auth"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/trace"
	"go.uber.org/zap"
)

// ConfigSource отдает неизменяемый снапшот политики на запрос
type ConfigSource interface {
	Current() domain.FusionConfig
}

// Core — конвейер одного запроса оркестрации:
// dispatch -> fuse -> ответ вызывающему -> асинхронная трасса.
// Внутри запроса порядок строго последовательный, между запросами порядка нет.
type Core struct {
	dispatcher *Dispatcher
	configs    ConfigSource
	recorder   trace.Recorder
	metrics    *Metrics
	logger     *zap.Logger
}

func NewCore(d *Dispatcher, configs ConfigSource, recorder trace.Recorder, metrics *Metrics, logger *zap.Logger) *Core {
	return &Core{
		dispatcher: d,
		configs:    configs,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger.Named("core"),
	}
}

// IdentifyResponse — структурированный результат для вызывающего.
// Decision встроен как есть; answer/person_id — сопутствующая нагрузка
// успешных сервисов, вердикта они не меняют.
type IdentifyResponse struct {
	RequestID string `json:"request_id"`
	domain.Decision
	PersonID     string    `json:"person_id,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	ProcessingMs int64     `json:"processing_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// Identify прогоняет запрос через весь конвейер.
// Ошибка возможна только при отмене вызывающим — в этом случае частичные
// результаты выбрасываются: ни фьюжна, ни трассы по отмененному запросу.
// Любая комбинация отказов сервисов дает валидный Decision (худший случай — Unknown).
func (c *Core) Identify(ctx context.Context, in *domain.IdentifyInput) (*IdentifyResponse, error) {
	start := time.Now()

	if in.RequestID == "" {
		in.RequestID = extractRequestID(ctx)
	}

	// Снапшот политики: горячее обновление не затронет запрос в полете
	cfg := c.configs.Current()

	set, err := c.dispatcher.Dispatch(ctx, in)
	if err != nil {
		c.logger.Info("request cancelled, partial results discarded",
			zap.String("request_id", in.RequestID),
			zap.Int("partial", len(set)))
		return nil, err
	}

	decision := fusion.Fuse(set, cfg)

	// Метрики: отказы сервисов по классам + вердикт
	for _, r := range set {
		if !r.OK() {
			c.metrics.ServiceFailures.WithLabelValues(string(r.ServiceID), string(r.Status)).Inc()
		}
	}
	c.metrics.DecisionTotal.WithLabelValues(string(decision.Outcome), string(decision.Reason)).Inc()

	processing := time.Since(start)
	c.metrics.RequestDuration.WithLabelValues(string(decision.Outcome)).Observe(processing.Seconds())

	resp := &IdentifyResponse{
		RequestID:    in.RequestID,
		Decision:     decision,
		ProcessingMs: processing.Milliseconds(),
		Timestamp:    time.Now().UTC(),
	}
	if v, ok := set.Verifier(); ok && v.OK() {
		resp.PersonID = v.PersonID
	}
	if cb, ok := set.Chatbot(); ok && cb.OK() {
		resp.Answer = cb.Answer
	}

	// Асинхронная запись: Hot Path не ждет Postgres
	c.recorder.Record(domain.TraceRecord{
		ID:           uuid.New().String(),
		RequestID:    in.RequestID,
		Timestamp:    resp.Timestamp,
		Query:        in.Query,
		Provider:     in.Provider,
		ImageName:    in.ImageName,
		Results:      set,
		Decision:     decision,
		Config:       cfg,
		ProcessingMs: resp.ProcessingMs,
	})

	return resp, nil
}

// maxImageBytes ограничивает размер принимаемого изображения (10 MiB)
const maxImageBytes = 10 << 20

// HandleIdentify — единственная точка входа оркестрации.
// POST /v1/identify, multipart: image (файл), query, provider, k.
func (c *Core) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	// Проверка прав из токена (Scopes)
	if !auth.HasScope(r.Context(), "identify") {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "token does not grant identify scope"})
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	query := r.FormValue("query")
	if query == "" {
		http.Error(w, "query field is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		http.Error(w, "failed to read image", http.StatusInternalServerError)
		return
	}

	topK, _ := strconv.Atoi(r.FormValue("k"))

	in := &domain.IdentifyInput{
		Image:     image,
		ImageName: header.Filename,
		Query:     query,
		Provider:  r.FormValue("provider"),
		TopK:      topK,
	}

	resp, err := c.Identify(r.Context(), in)
	if err != nil {
		// Сюда попадает только отмена: клиент ушел, отвечать некому
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
