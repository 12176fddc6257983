package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/metrics"
)

const (
	defaultCountWorkers = 2
	defaultQueueSize    = 100
	defaultMaxRetries   = 3
	defaultRetryBase    = time.Second
	defaultSendTimeout  = 30 * time.Second
)

var ErrDispatcherStopped = errors.New("mail dispatcher is stopped")

type Config struct {
	// Number of workers sending emails concurrently
	Workers int

	// Messages waiting for a worker. Enqueue fails when the queue is full
	QueueSize int

	// Retries after first failed attempt, with exponential backoff starting from RetryBase
	MaxRetries uint64
	RetryBase  time.Duration

	// Limit for single send attempt
	SendTimeout time.Duration
}

// Dispatcher accepts messages without blocking and delivers them in background
type Dispatcher struct {
	queue chan Message

	// Guards stopped: Enqueue holds read lock while putting to the queue
	mu      sync.RWMutex
	stopped bool

	countWorkers int
	maxRetries   uint64
	retryBase    time.Duration
	sendTimeout  time.Duration

	renderer *Renderer
	sender   Sender
	logger   logger.Logger
}

func NewDispatcher(cfg Config, renderer *Renderer, sender Sender, logger logger.Logger) *Dispatcher {
	setDefault := func(field *int, def int) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefault(&cfg.Workers, defaultCountWorkers)
	setDefault(&cfg.QueueSize, defaultQueueSize)

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	return &Dispatcher{
		queue:        make(chan Message, cfg.QueueSize),
		countWorkers: cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryBase:    cfg.RetryBase,
		sendTimeout:  cfg.SendTimeout,
		renderer:     renderer,
		sender:       sender,
		logger:       logger,
	}
}

// Put message to the queue. Never blocks
// Returns apperrors.ErrMailQueueFull if there is no room and ErrDispatcherStopped after shutdown
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- msg:
		metrics.SetMailQueueDepth(len(d.queue))
		return nil
	default:
		metrics.RecordMail(string(msg.Kind), metrics.ResultDropped)
		return apperrors.ErrMailQueueFull
	}
}

// Start workers. They run until ctx is done, then send what is left in the queue and stop
// Returned channel is closed when all workers are stopped
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < d.countWorkers; i++ {
		wg.Add(1)
		go func() {
			d.worker(ctx)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		<-ctx.Done()

		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		wg.Wait()
		// Messages accepted after workers drained the queue but before stop
		d.drain(context.WithoutCancel(ctx))
		d.logger.Debug("Mail dispatcher stopped")
	}()

	return idleStopped
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return

		case msg := <-d.queue:
			metrics.SetMailQueueDepth(len(d.queue))

			// Picked up while shutting down: the last chance to send it
			if ctx.Err() != nil {
				d.deliver(context.WithoutCancel(ctx), msg, 0)
				continue
			}
			d.deliver(ctx, msg, d.maxRetries)
		}
	}
}

// Send messages left in the queue once, without retries
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg, 0)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message, retries uint64) {
	log := d.logger.With("kind", msg.Kind, "to", msg.To)

	email, err := d.renderer.Render(msg)
	if err != nil {
		log.Error("Failed to render email", "error", err)
		metrics.RecordMail(string(msg.Kind), metrics.ResultFailed)
		return
	}

	attempt := 0
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(d.retryBase))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, email); err != nil {
			log.Warn("Email send attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		log.Error("Failed to send email", "attempts", attempt, "error", fmt.Errorf("giving up: %w", err))
		metrics.RecordMail(string(msg.Kind), metrics.ResultFailed)
		return
	}

	log.Debug("Email sent", "attempts", attempt)
	metrics.RecordMail(string(msg.Kind), metrics.ResultOK)
}
