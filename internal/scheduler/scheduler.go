// Package scheduler runs the periodic notification loop: on every tick it
// re-checks each subscribed user's tracked set and hands the report to the
// notifier.
package scheduler

import (
	"context"
	"sync"
	"time"

	"fragwatch/internal/checker"
	"fragwatch/internal/report"
	"fragwatch/internal/resultcache"
	"fragwatch/internal/tracker"
	logx "fragwatch/pkg/logx"
)

// Clock abstracts wall time so tests drive ticks without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NotifyFunc delivers one report to a user. Failures are logged per user
// and never abort the tick.
type NotifyFunc func(ctx context.Context, userID int64, text string) error

// ReportFunc renders a finished pass for delivery.
type ReportFunc func(res checker.Result) string

type Config struct {
	// Schedule is a Go duration or cron expression. Default "3h".
	Schedule string

	// TickTimeout bounds one whole tick. Zero derives 80% of the period,
	// so a slow pass can never make ticks pile up.
	TickTimeout time.Duration

	// Batch is the per-user check config; the scheduler forces
	// Concurrency to 1 (conservative shared-session pacing).
	Batch checker.Config
}

type Service struct {
	cfg   Config
	spec  Spec
	trk   *tracker.Service
	chk   *checker.Checker
	cache *resultcache.Cache

	notify NotifyFunc
	render ReportFunc
	clock  Clock
	log    logx.Logger

	// busy tracks in-flight per-user passes; a tick skips users whose
	// previous pass has not finished.
	mu   sync.Mutex
	busy map[int64]bool

	running bool
	done    chan struct{}
}

func New(cfg Config, trk *tracker.Service, chk *checker.Checker, cache *resultcache.Cache,
	notify NotifyFunc, render ReportFunc, log logx.Logger) (*Service, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "3h"
	}
	spec, err := ParseSpec(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	cfg.Batch.Concurrency = 1
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		spec:   spec,
		trk:    trk,
		chk:    chk,
		cache:  cache,
		notify: notify,
		render: render,
		clock:  realClock{},
		log:    log,
		busy:   map[int64]bool{},
		done:   make(chan struct{}),
	}, nil
}

// SetClock replaces the wall clock. Must be called before Run.
func (s *Service) SetClock(c Clock) {
	if c != nil {
		s.clock = c
	}
}

// Run loops until ctx is cancelled. A tick that is still running when the
// next is due does not stack: busy users are skipped on the next tick.
func (s *Service) Run(ctx context.Context) {
	defer close(s.done)
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("scheduler started", logx.String("schedule", s.spec.Raw))
	for {
		now := s.clock.Now()
		wait := s.spec.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-s.clock.After(wait):
		}
		s.tick(ctx)
	}
}

// Done is closed once Run has returned.
func (s *Service) Done() <-chan struct{} { return s.done }

// tick runs one pass over every subscribed user. Per-user work is
// independent: one user's slow batch or failed delivery never blocks the
// rest of the tick.
func (s *Service) tick(ctx context.Context) {
	timeout := s.cfg.TickTimeout
	if timeout <= 0 {
		period := s.spec.Period(s.clock.Now())
		timeout = period * 8 / 10
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)

	subs, err := s.trk.Subscribers(tickCtx)
	if err != nil {
		cancel()
		s.log.Error("tick aborted: subscriber listing failed", logx.Err(err))
		return
	}
	if len(subs) == 0 {
		cancel()
		s.log.Debug("tick: no subscribed users")
		return
	}
	s.log.Info("tick started", logx.Int("users", len(subs)))

	var wg sync.WaitGroup
	for _, rec := range subs {
		userID := rec.UserID
		if !s.tryAcquire(userID) {
			s.log.Warn("tick: previous pass still running, skipping user",
				logx.Int64("user", userID))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release(userID)
			s.runUser(tickCtx, userID)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		cancel()
	case <-tickCtx.Done():
		// The deadline hit while passes were still running. They finish
		// their in-flight checks on their own; the busy flags keep the
		// next tick from doubling up on the same users.
		go func() { <-done; cancel() }()
	}
}

func (s *Service) runUser(ctx context.Context, userID int64) {
	nums, err := s.trk.List(ctx, userID)
	if err != nil {
		s.log.Error("tick: list failed", logx.Int64("user", userID), logx.Err(err))
		return
	}
	if len(nums) == 0 {
		return
	}

	res := s.chk.RunChunked(ctx, nums, s.cfg.Batch)
	res.UserID = userID
	s.cache.Put(userID, res)

	if err := s.notify(ctx, userID, s.render(res)); err != nil {
		s.log.Error("tick: notify failed", logx.Int64("user", userID), logx.Err(err))
		return
	}
	s.log.Debug("tick: user pass complete",
		logx.Int64("user", userID),
		logx.String("summary", report.Summary(res)),
		logx.Bool("cancelled", res.Cancelled))
}

func (s *Service) tryAcquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[userID] {
		return false
	}
	s.busy[userID] = true
	return true
}

func (s *Service) release(userID int64) {
	s.mu.Lock()
	delete(s.busy, userID)
	s.mu.Unlock()
}
