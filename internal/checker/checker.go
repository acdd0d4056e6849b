// Package checker drives bounded batches of number checks against a status
// source, with per-call timeout, retry with backoff, and inter-call pacing
// tuned to avoid tripping rate limits on the remote side.
package checker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fragwatch/internal/source"
	logx "fragwatch/pkg/logx"
)

const (
	DefaultBatchCap       = 40
	DefaultMaxAttempts    = 3
	DefaultPerCallTimeout = 15 * time.Second
	DefaultPaceMin        = 700 * time.Millisecond
	DefaultPaceMax        = 2500 * time.Millisecond
)

// Config controls one batch run.
type Config struct {
	// Concurrency is the worker count. Each worker holds its own source
	// session; values above 1 require a real session factory.
	Concurrency int

	// PerCallTimeout bounds a single check attempt.
	PerCallTimeout time.Duration

	// PaceMin/PaceMax bound the jittered delay slept after every attempt,
	// successful or not.
	PaceMin time.Duration
	PaceMax time.Duration

	// MaxAttempts is the total attempt budget per identifier (first try
	// included). Exhausting it records StatusError, never a batch failure.
	MaxAttempts int

	// BatchCap bounds one run; longer inputs are truncated and the caller
	// issues further runs for the remainder.
	BatchCap int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = DefaultPerCallTimeout
	}
	if c.PaceMin <= 0 {
		c.PaceMin = DefaultPaceMin
	}
	if c.PaceMax <= 0 {
		c.PaceMax = DefaultPaceMax
	}
	if c.PaceMax < c.PaceMin {
		c.PaceMax = c.PaceMin
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BatchCap <= 0 {
		c.BatchCap = DefaultBatchCap
	}
	return c
}

// Item is one per-identifier outcome. Immutable once produced.
type Item struct {
	Number string
	Status source.Status
}

// Result is one checking pass. Items carry exactly one entry per checked
// input identifier; Cancelled marks a pass cut short by the caller's
// deadline, with Items holding what finished before the cut.
type Result struct {
	UserID    int64
	StartedAt time.Time
	Items     []Item
	Cancelled bool
}

// Restricted returns the restricted subset of a result.
func (r Result) Restricted() []Item {
	var out []Item
	for _, it := range r.Items {
		if it.Status == source.StatusRestricted {
			out = append(out, it)
		}
	}
	return out
}

// Checker runs batches against source sessions from a factory.
type Checker struct {
	factory source.Factory
	log     logx.Logger
}

func New(factory source.Factory, log logx.Logger) *Checker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{factory: factory, log: log}
}

// Run checks up to cfg.BatchCap identifiers and returns one Item per
// checked input. Workers finish their in-flight check on cancellation;
// identifiers never started are simply absent from a cancelled result.
func (c *Checker) Run(ctx context.Context, ids []string, cfg Config) Result {
	cfg = cfg.withDefaults()
	res := Result{StartedAt: time.Now()}

	if len(ids) > cfg.BatchCap {
		ids = ids[:cfg.BatchCap]
	}
	if len(ids) == 0 {
		return res
	}

	jobs := make(chan string)
	var (
		mu    sync.Mutex
		items []Item
	)

	// The group context is deliberately not passed to workers' check calls
	// as their cancel signal for in-flight work: a worker drains its
	// current identifier to completion and only then observes ctx.
	g := new(errgroup.Group)
	for w := 0; w < cfg.Concurrency; w++ {
		seed := time.Now().UnixNano() ^ (int64(w) << 32)
		rng := rand.New(rand.NewSource(seed))
		g.Go(func() error {
			sess, err := c.factory.NewSession()
			if err != nil {
				c.log.Error("checker session unavailable", logx.Err(err))
				for id := range jobs {
					mu.Lock()
					items = append(items, Item{Number: id, Status: source.StatusError})
					mu.Unlock()
				}
				return nil
			}
			// Pacing runs before every job but the first, so the worker
			// never sleeps after its last consumed identifier.
			first := true
			for id := range jobs {
				if !first && !sleepCtx(ctx, paceDelay(cfg, rng)) {
					return nil
				}
				first = false
				st := c.checkOne(ctx, sess, id, cfg, rng)
				mu.Lock()
				items = append(items, Item{Number: id, Status: st})
				mu.Unlock()
			}
			return nil
		})
	}

feed:
	for _, id := range ids {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	_ = g.Wait()

	res.Items = items
	res.Cancelled = ctx.Err() != nil
	return res
}

// RunChunked issues successive Run invocations in BatchCap-sized chunks
// until the whole input is covered or ctx is cancelled, and merges the
// partial results. Each chunk still honors the single-invocation cap.
func (c *Checker) RunChunked(ctx context.Context, ids []string, cfg Config) Result {
	cfg = cfg.withDefaults()
	merged := Result{StartedAt: time.Now()}
	for start := 0; start < len(ids); start += cfg.BatchCap {
		end := start + cfg.BatchCap
		if end > len(ids) {
			end = len(ids)
		}
		res := c.Run(ctx, ids[start:end], cfg)
		merged.Items = append(merged.Items, res.Items...)
		if res.Cancelled {
			merged.Cancelled = true
			break
		}
	}
	return merged
}

// checkOne runs the attempt loop for a single identifier. It returns a
// terminal status; source failures surface as StatusError after the
// attempt budget is spent, never as a batch error.
func (c *Checker) checkOne(ctx context.Context, sess source.Source, id string, cfg Config, rng *rand.Rand) source.Status {
	var (
		st  source.Status
		err error
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(context.Background(), cfg.PerCallTimeout)
		st, err = sess.Check(callCtx, id)
		cancel()
		if err == nil {
			return st
		}
		c.log.Debug("check attempt failed",
			logx.String("number", id),
			logx.Int("attempt", attempt),
			logx.Err(err))
		if attempt >= cfg.MaxAttempts {
			break
		}
		// Inter-attempt backoff never drops below the pace floor, so the
		// remote side sees the same minimum spacing whether attempts
		// succeed or fail.
		if !sleepCtx(ctx, backoffDelay(cfg, attempt, rng)) {
			break
		}
	}
	c.log.Warn("check failed after retries",
		logx.String("number", id),
		logx.Int("attempts", cfg.MaxAttempts),
		logx.Err(err))
	return source.StatusError
}

// paceDelay picks a uniform jittered delay in [PaceMin, PaceMax].
func paceDelay(cfg Config, rng *rand.Rand) time.Duration {
	if cfg.PaceMax <= cfg.PaceMin {
		return cfg.PaceMin
	}
	span := cfg.PaceMax - cfg.PaceMin
	return cfg.PaceMin + time.Duration(rng.Int63n(int64(span)))
}

// backoffDelay doubles per retry starting from the pace floor, with
// upward-only jitter so no inter-attempt sleep is shorter than PaceMin.
func backoffDelay(cfg Config, retry int, rng *rand.Rand) time.Duration {
	d := cfg.PaceMin
	for i := 1; i < retry; i++ {
		d *= 2
		if d > 15*time.Second {
			d = 15 * time.Second
			break
		}
	}
	return time.Duration(float64(d) * (1 + rng.Float64()*0.2))
}

// sleepCtx sleeps d unless ctx is cancelled first. Reports whether the
// full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}
