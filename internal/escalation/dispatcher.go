package escalation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/metrics"
)

const defaultQueueSize = 64

// Dispatcher выполняет эскалации в фоне, не задерживая ответ пользователю.
type Dispatcher struct {
	escalator Escalator
	jobs      chan string
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// DispatcherOption настраивает диспетчер.
type DispatcherOption func(*Dispatcher)

// WithQueueSize задаёт размер буфера заданий.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.jobs = make(chan string, n)
		}
	}
}

// WithTimeout задаёт предельное время одной эскалации.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMetrics подключает счётчики результатов.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher создаёт диспетчер поверх эскалатора.
func NewDispatcher(escalator Escalator, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		escalator: escalator,
		jobs:      make(chan string, defaultQueueSize),
		timeout:   10 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch ставит эскалацию в очередь. Не блокируется: при переполненном буфере запрос отбрасывается.
func (d *Dispatcher) Dispatch(phone string) bool {
	select {
	case d.jobs <- phone:
		return true
	default:
		d.logger.Warn("escalation queue full, request dropped", zap.String("phone", phone))
		d.metrics.EscalationFinished("dropped")
		return false
	}
}

// Run обрабатывает очередь до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.jobs); n > 0 {
				d.logger.Warn("dispatcher stopped with pending escalations", zap.Int("pending", n))
			}
			return nil
		case phone := <-d.jobs:
			d.execute(ctx, phone)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, phone string) {
	escCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.escalator.Escalate(escCtx, phone); err != nil {
		d.logger.Warn("failed to escalate to human", zap.String("phone", phone), zap.Error(err))
		d.metrics.EscalationFinished("failed")
		return
	}

	d.logger.Info("escalation triggered", zap.String("phone", phone))
	d.metrics.EscalationFinished("ok")
}
