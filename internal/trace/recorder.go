package trace

/*
Файл recorder.go реализует компонент записи аналитических трасс оркестрации.

Ключевые особенности архитектуры:
- Non-blocking Recording: Использование неблокирующих каналов для передачи трасс
  из Hot Path шлюза. Задержки и отказы записи в БД не влияют на Response Time:
  PersistenceFailure гасится здесь и никогда не возвращается в запрос.
- Batching & Efficiency: Накопление трасс в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита батча.
- Drain Pattern & Graceful Shutdown: Механизм полной вычитки буфера при остановке
  сервиса. С помощью sync.WaitGroup и закрытия каналов гарантируется Final Flush.
- Delivery: at-least-once. Падение между Decision и записью может потерять трассу,
  ретрай может создать дубль — читатели дедуплицируют по request_id.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться трассы
type StorageInterface interface {
	// WriteBatch сохраняет пачку трасс за один раз
	WriteBatch(ctx context.Context, records []domain.TraceRecord) error
}

// Recorder — контракт для ядра оркестрации
type Recorder interface {
	Record(rec domain.TraceRecord)
}

// Options — настройки буферизации и метрики backpressure (оба gauge опциональны)
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration

	BufferFill    prometheus.Gauge
	FlushFailures prometheus.Counter
}

type TraceFS struct {
	ch     chan domain.TraceRecord // Буфер для асинхронности
	repo   StorageInterface        // Интерфейс для Postgres/ClickHouse
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup
	// «Железобетонная» защита: вдруг кто-то вызовет Record после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTraceFS(repo StorageInterface, logger *zap.Logger, opts Options) *TraceFS {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &TraceFS{
		ch:     make(chan domain.TraceRecord, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "tracefs")),
	}
}

func (fs *TraceFS) Start() {
	fs.wg.Add(1)
	go fs.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (fs *TraceFS) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&fs.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Drain Pattern: завершение воркера происходит исключительно через закрытие входного канала
	fs.logger.Info("stopping trace recorder: closing channel and flushing buffer...")
	close(fs.ch)
	fs.wg.Wait()
	fs.logger.Info("trace recorder stopped gracefully")
}

// Record принимает трассу без блокировки Hot Path.
// Переполнение буфера — Load Shedding: трасса теряется, факт потери логируется.
func (fs *TraceFS) Record(rec domain.TraceRecord) {
	// Убеждаемся, что таймстемп всегда проставлен
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&fs.isClosed) == 1 {
		fs.logger.Warn("trace dropped: recorder is stopping", zap.String("request_id", rec.RequestID))
		return
	}

	select {
	case fs.ch <- rec:
		if fs.opts.BufferFill != nil {
			fs.opts.BufferFill.Set(float64(len(fs.ch)))
		}
	default:
		// Канал переполнен (Backpressure) — не теряем факт молча
		fs.logger.Error("trace_buffer_overflow",
			zap.String("request_id", rec.RequestID),
			zap.String("outcome", string(rec.Decision.Outcome)),
		)
	}
}

func (fs *TraceFS) worker() {
	defer fs.wg.Done()

	batch := make([]domain.TraceRecord, 0, fs.opts.BatchSize)
	ticker := time.NewTicker(fs.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Используем Background, так как основной контекст может быть уже закрыт
		if err := fs.repo.WriteBatch(context.Background(), batch); err != nil {
			// PersistenceFailure: репортим в observability, в запрос не возвращаем
			fs.logger.Error("trace flush failed", zap.Int("batch", len(batch)), zap.Error(err))
			if fs.opts.FlushFailures != nil {
				fs.opts.FlushFailures.Inc()
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-fs.ch:
			if !ok {
				// Канал закрыт в Stop() — самодостаточный сигнал завершения:
				// воркер сначала вычитал остатки очереди, теперь финальный flush
				flush()
				fs.logger.Info("trace worker finished")
				return
			}
			batch = append(batch, rec)
			if fs.opts.BufferFill != nil {
				fs.opts.BufferFill.Set(float64(len(fs.ch)))
			}
			if len(batch) >= fs.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
