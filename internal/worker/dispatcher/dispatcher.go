// Package dispatcher доставляет outbox-события в RabbitMQ.
//
// Несколько воркеров опрашивают таблицу outbox_events: FetchPending берёт
// пачку pending-событий c FOR UPDATE SKIP LOCKED, поэтому воркеры не
// конкурируют за одни и те же строки. Публикация и смена статуса происходят
// внутри одной транзакции - упавший воркер откатит статус, и событие
// доставит другой. Возможна повторная доставка, дедупликация лежит на
// потребителе (messageID = ID события).
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

// Config параметры диспетчера
type Config struct {
	Workers      int           // количество конкурентных воркеров
	BatchSize    int           // событий за один опрос
	PollInterval time.Duration // пауза между опросами пустой очереди
	MaxAttempts  int           // после стольких неудач событие помечается failed
	BackoffBase  time.Duration // базовая задержка повтора, удваивается с каждой попыткой
}

// Dispatcher воркер-пул доставки outbox-событий
type Dispatcher struct {
	outboxRepo OutboxRepository
	publisher  Publisher
	txManager  TransactionManager
	metrics    MetricsCollector // nil - метрики выключены
	cfg        Config
	logger     Logger
}

func New(
	outboxRepo OutboxRepository,
	publisher Publisher,
	txManager TransactionManager,
	metrics MetricsCollector,
	cfg Config,
	logger Logger,
) *Dispatcher {
	return &Dispatcher{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run запускает воркеров и блокируется до отмены контекста
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher: starting %d worker(s), batch=%d, poll=%s",
		d.cfg.Workers, d.cfg.BatchSize, d.cfg.PollInterval)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	d.logger.Info("Dispatcher: all workers stopped")
}

func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	for {
		dispatched, err := d.DispatchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("Dispatcher: worker %d batch failed: %v", workerID, err)
		}

		// Непустая пачка - очередь не пуста, опрашиваем без паузы
		if dispatched > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// DispatchBatch забирает и доставляет одну пачку событий.
// Возвращает количество обработанных событий.
func (d *Dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	var processed int

	err := d.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		events, err := d.outboxRepo.FetchPending(txCtx, d.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch pending events: %w", err)
		}

		for _, event := range events {
			if err := d.dispatchOne(txCtx, event); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event *domain.OutboxEvent) error {
	routingKey := fmt.Sprintf("booking.%d.%s", event.TenantID, event.EventCode)

	start := time.Now()
	pubErr := d.publisher.Publish(routingKey, event.ID.String(), event.Payload)
	if d.metrics != nil {
		d.metrics.ObserveOutboxDispatch(event.EventCode, time.Since(start), pubErr)
	}

	if pubErr == nil {
		if err := d.outboxRepo.MarkDispatched(ctx, event.ID); err != nil {
			return fmt.Errorf("mark dispatched id=%s: %w", event.ID, err)
		}
		d.logger.Info("Dispatcher: event dispatched: id=%s, code=%s, key=%s",
			event.ID, event.EventCode, routingKey)
		return nil
	}

	attempt := event.AttemptCount + 1
	if attempt >= d.cfg.MaxAttempts {
		if err := d.outboxRepo.MarkFailed(ctx, event.ID, pubErr.Error()); err != nil {
			return fmt.Errorf("mark failed id=%s: %w", event.ID, err)
		}
		d.logger.Error("Dispatcher: event failed permanently: id=%s, code=%s, attempts=%d, error=%v",
			event.ID, event.EventCode, attempt, pubErr)
		return nil
	}

	readyAt := time.Now().UTC().Add(d.backoff(event.AttemptCount))
	if err := d.outboxRepo.RescheduleAttempt(ctx, event.ID, readyAt, pubErr.Error()); err != nil {
		return fmt.Errorf("reschedule id=%s: %w", event.ID, err)
	}
	d.logger.Warn("Dispatcher: event rescheduled: id=%s, code=%s, attempt=%d, ready_at=%s, error=%v",
		event.ID, event.EventCode, attempt, readyAt.Format(time.RFC3339), pubErr)
	return nil
}

// backoff экспоненциальная задержка: base * 2^attempt
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
