// Package tracker owns the per-user tracked-number sets and notification
// preferences. All mutations go through this service; the storage layer is
// never written by anyone else.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"fragwatch/internal/number"
	"fragwatch/internal/storage"
	logx "fragwatch/pkg/logx"
)

// DefaultMaxTracked caps the per-user set size. Insertion sorts and
// truncates; entries beyond the cap are dropped silently.
const DefaultMaxTracked = 1000

type Config struct {
	MaxTracked int
}

// AddResult reports a merge outcome.
type AddResult struct {
	Saved    int      // size of the set after the merge
	Added    int      // newly inserted identifiers
	Rejected []string // raw tokens that failed normalization
}

// Service serializes mutations per user id so a Clear racing a scheduled
// check can never expose a half-applied set.
type Service struct {
	cfg   Config
	store storage.Store
	log   logx.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if cfg.MaxTracked <= 0 {
		cfg.MaxTracked = DefaultMaxTracked
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log,
		locks: map[int64]*sync.Mutex{},
	}
}

// userLock returns the mutex for one user id, creating it on first use.
// Locks are never removed; the user population is small and bounded.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Add normalizes rawText, merges accepted identifiers into the user's set,
// sorts, deduplicates, truncates to the cap and persists atomically.
// The first successful Add enables notifications for the user.
func (s *Service) Add(ctx context.Context, userID int64, rawText string) (AddResult, error) {
	accepted, rejected := number.NormalizeBatch(rawText)
	res := AddResult{Rejected: rejected}
	if len(accepted) == 0 {
		return res, nil
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return res, err
	}
	if !had {
		rec = storage.UserRecord{UserID: userID, Notify: true}
	}

	before := len(rec.Numbers)
	merged := mergeSorted(rec.Numbers, accepted, s.cfg.MaxTracked)
	rec.Numbers = merged
	rec.UpdatedAt = time.Now()

	if err := s.store.PutUser(ctx, rec); err != nil {
		return res, err
	}

	res.Saved = len(merged)
	res.Added = len(merged) - before
	if res.Added < 0 {
		res.Added = 0
	}
	return res, nil
}

// Remove deletes one identifier. Reports whether it was present.
func (s *Service) Remove(ctx context.Context, userID int64, raw string) (bool, error) {
	id, err := number.Normalize(raw)
	if err != nil {
		return false, err
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil || !had {
		return false, err
	}
	i := sort.SearchStrings(rec.Numbers, id)
	if i >= len(rec.Numbers) || rec.Numbers[i] != id {
		return false, nil
	}
	rec.Numbers = append(rec.Numbers[:i], rec.Numbers[i+1:]...)
	rec.UpdatedAt = time.Now()
	if err := s.store.PutUser(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// List returns a copy of the user's tracked set, empty for unknown users.
func (s *Service) List(ctx context.Context, userID int64) ([]string, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil || !had {
		return nil, err
	}
	out := make([]string, len(rec.Numbers))
	copy(out, rec.Numbers)
	return out, nil
}

// Clear empties the user's set. Idempotent; the notification preference
// survives a clear.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil || !had {
		return err
	}
	if len(rec.Numbers) == 0 {
		return nil
	}
	rec.Numbers = nil
	rec.UpdatedAt = time.Now()
	return s.store.PutUser(ctx, rec)
}

// SetNotify flips the user's notification preference. A user who has never
// tracked a number has no record; the preference is created disabled-by-
// default only when explicitly set.
func (s *Service) SetNotify(ctx context.Context, userID int64, enabled bool) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !had {
		rec = storage.UserRecord{UserID: userID}
	}
	rec.Notify = enabled
	rec.UpdatedAt = time.Now()
	return s.store.PutUser(ctx, rec)
}

// Notify reports the user's preference; absent users are disabled.
func (s *Service) Notify(ctx context.Context, userID int64) (bool, error) {
	rec, had, err := s.store.GetUser(ctx, userID)
	if err != nil || !had {
		return false, err
	}
	return rec.Notify, nil
}

// Subscribers returns every user with notifications enabled and a
// non-empty tracked set. Used by the scheduler on each tick.
func (s *Service) Subscribers(ctx context.Context) ([]storage.UserRecord, error) {
	recs, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Notify && len(r.Numbers) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// mergeSorted merges add into base, sorts, deduplicates and truncates to maxN.
func mergeSorted(base, add []string, maxN int) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	merged := make([]string, 0, len(base)+len(add))
	for _, lists := range [][]string{base, add} {
		for _, id := range lists {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	sort.Strings(merged)
	if len(merged) > maxN {
		merged = merged[:maxN]
	}
	return merged
}
