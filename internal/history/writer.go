package history

/*
Файл writer.go реализует фоновую запись истории транзакций.

Ключевые особенности архитектуры:
- Non-blocking Logging: запись в историю не стоит на Hot Path исполнения —
  задержки PostgreSQL не влияют на время ответа dApp-у.
- Batching: накопление записей в памяти и пакетная вставка (Bulk Insert)
  по таймеру или при достижении лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке сервиса буфер вычитывается
  полностью. sync.WaitGroup и закрытие канала гарантируют Final Flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/infra"
)

// StorageInterface определяет, куда физически сохраняется история
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, entries []Entry) error
}

type Recorder interface {
	Record(entry Entry)
}

type Writer struct {
	ch     chan Entry
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	batchSize     int
	flushInterval time.Duration

	// Защита от записи после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewWriter(repo StorageInterface, cfg infra.HistoryConfig, logger *zap.Logger) *Writer {
	return &Writer{
		ch:            make(chan Entry, cfg.BufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "history")),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}
}

func (w *Writer) Start() {
	w.wg.Add(1)
	go w.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (w *Writer) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&w.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Закрываем (Drain Pattern). Завершение горутины происходит
	// исключительно через закрытие входного канала.
	w.logger.Info("stopping history writer: closing channel and flushing buffer...")
	close(w.ch)
	w.wg.Wait()
	w.logger.Info("history writer stopped gracefully")
}

func (w *Writer) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&w.isClosed) == 1 {
		w.logger.Warn("history entry dropped: writer is stopping", zap.String("id", entry.ID))
		return
	}

	// Load Shedding: история вторична по отношению к ответу dApp-у
	select {
	case w.ch <- entry:
	default:
		// Канал переполнен (Backpressure) — фиксируем факт в логе,
		// чтобы запись не пропала бесследно
		w.logger.Error("history_buffer_overflow",
			zap.String("request_id", entry.RequestID),
			zap.String("origin", entry.Origin),
		)
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	batch := make([]Entry, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background: основной контекст может быть уже закрыт
			if err := w.repo.WriteBatch(context.Background(), batch); err != nil {
				w.logger.Error("history flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case entry, ok := <-w.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер сначала вычитал остатки,
				// теперь финальный сброс и выход.
				flush()
				w.logger.Info("history worker finished")
				return
			}
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
