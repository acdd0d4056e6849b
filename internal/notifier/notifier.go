// Package notifier delivers report texts to users through the transport
// adapter: a small queue + worker pool with a global rate limit and
// per-message retry, so one slow chat cannot stall a scheduler tick.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "fragwatch/internal/transport"
	logx "fragwatch/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 512
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	return c
}

type job struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

// Service is safe for concurrent use.
type Service struct {
	cfg     Config
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   chan job
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.queue = make(chan job, s.cfg.QueueSize)

	wctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(wctx)
		}()
	}
}

// Stop drains nothing: queued but unsent notifications are dropped.
// Delivery is best effort.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// Notify enqueues one message. It never blocks the caller.
func (s *Service) Notify(to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	s.mu.Lock()
	q := s.queue
	started := s.started
	s.mu.Unlock()
	if !started || q == nil {
		return ErrStopped
	}
	select {
	case q <- job{to: to, text: text, opt: opt}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	maxAttempts := 1 + s.cfg.RetryMax
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		_, err := s.adapter.SendText(ctx, j.to, j.text, j.opt)
		if err == nil {
			return
		}
		s.log.Warn("notify send failed",
			logx.Int64("chat", j.to.ChatID),
			logx.Int("attempt", attempt),
			logx.Err(err))
		if attempt >= maxAttempts {
			return
		}
		delay := s.cfg.RetryBase << (attempt - 1)
		if delay > s.cfg.RetryMaxDelay {
			delay = s.cfg.RetryMaxDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
