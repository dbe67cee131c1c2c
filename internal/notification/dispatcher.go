// Package notification hands committed workflow events to the delivery sink.
// Message templating and WhatsApp/email delivery happen downstream of the sink.
package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/shared/config"
	"github.com/oncoayuda/casework/internal/shared/events"
	"github.com/oncoayuda/casework/internal/shared/metrics"
)

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
	// Timeout bounds a single publish attempt.
	Timeout time.Duration
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:       4,
		BufferSize:    1000,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// ConfigFrom maps the application configuration section.
func ConfigFrom(cfg config.NotificationConfig) DispatcherConfig {
	return DispatcherConfig{
		Workers:       cfg.Workers,
		BufferSize:    cfg.BufferSize,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		Timeout:       cfg.Timeout,
	}
}

// Stats counts dispatch outcomes since start.
type Stats struct {
	Emitted int64 `json:"emitted"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Dispatcher is a bounded worker pool in front of a Publisher. Emit never
// blocks: when the buffer is full or the dispatcher is stopped the event is
// dropped and logged. Publish failures are retried, then logged and dropped.
type Dispatcher struct {
	publisher events.Publisher
	log       *zap.Logger
	config    DispatcherConfig

	queue chan events.Event

	mu      sync.RWMutex
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	emitted, sent, failed, dropped atomic.Int64
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(publisher events.Publisher, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	return &Dispatcher{
		publisher: publisher,
		log:       log.Named("notification"),
		config:    cfg,
		queue:     make(chan events.Event, cfg.BufferSize),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the workers
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return nil
}

// Stop stops accepting events, lets workers drain the queue and waits for
// them until ctx expires. The publisher is closed afterwards.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not running")
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
	return d.publisher.Close()
}

// Emit implements events.Emitter.
func (d *Dispatcher) Emit(event events.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.started || d.stopped {
		d.drop(event, "dispatcher not running")
		return
	}

	select {
	case d.queue <- event:
		d.emitted.Add(1)
		metrics.SetNotificationQueueDepth(len(d.queue))
	default:
		d.drop(event, "buffer full")
	}
}

func (d *Dispatcher) drop(event events.Event, reason string) {
	d.dropped.Add(1)
	metrics.RecordNotification(event.Type, "dropped")
	d.log.Warn("notification dropped",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("subject", event.Subject),
		zap.String("reason", reason),
	)
}

// Stats returns dispatch counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Emitted: d.emitted.Load(),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-d.stopCh:
			// Drain what was accepted before Stop.
			for {
				select {
				case event := <-d.queue:
					d.deliver(ctx, event)
				default:
					return
				}
			}
		}
	}
}

// deliver publishes one event with bounded retries.
func (d *Dispatcher) deliver(ctx context.Context, event events.Event) {
	metrics.SetNotificationQueueDepth(len(d.queue))

	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= d.config.RetryAttempts; attempt++ {
		err = d.publishOnce(ctx, event)
		if err == nil {
			d.sent.Add(1)
			metrics.RecordNotification(event.Type, "sent")
			d.log.Debug("notification published",
				zap.String("event_type", event.Type),
				zap.String("subject", event.Subject),
				zap.Int("attempt", attempt),
			)
			return
		}

		if attempt == d.config.RetryAttempts || !d.backoff(ctx) {
			break
		}
	}

	d.failed.Add(1)
	metrics.RecordNotification(event.Type, "failed")
	d.log.Error("notification failed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("subject", event.Subject),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
}

// backoff waits RetryDelay; it returns false if ctx ends first.
func (d *Dispatcher) backoff(ctx context.Context) bool {
	t := time.NewTimer(d.config.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) publishOnce(ctx context.Context, event events.Event) error {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}
	return d.publisher.Publish(ctx, event)
}
