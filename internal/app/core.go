package app

import (
	"context"

	"fragwatch/internal/checker"
	"fragwatch/internal/resultcache"
	"fragwatch/internal/source"
	"fragwatch/internal/tracker"
	logx "fragwatch/pkg/logx"
)

// Core is the operation facade the command surface talks to. It owns the
// on-demand checking path; the scheduler drives the periodic one.
type Core struct {
	trk      *tracker.Service
	chk      *checker.Checker
	cache    *resultcache.Cache
	batchCfg checker.Config
	log      logx.Logger
}

func NewCore(trk *tracker.Service, chk *checker.Checker, cache *resultcache.Cache,
	batchCfg checker.Config, log logx.Logger) *Core {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Core{trk: trk, chk: chk, cache: cache, batchCfg: batchCfg, log: log}
}

// AddNumbers normalizes and merges raw input into the user's tracked set.
func (c *Core) AddNumbers(ctx context.Context, userID int64, rawText string) (tracker.AddResult, error) {
	return c.trk.Add(ctx, userID, rawText)
}

// ListNumbers returns the user's tracked set.
func (c *Core) ListNumbers(ctx context.Context, userID int64) ([]string, error) {
	return c.trk.List(ctx, userID)
}

// RemoveNumber removes one identifier; reports whether it was tracked.
func (c *Core) RemoveNumber(ctx context.Context, userID int64, raw string) (bool, error) {
	return c.trk.Remove(ctx, userID, raw)
}

// ClearNumbers empties the user's tracked set and drops the cached result.
func (c *Core) ClearNumbers(ctx context.Context, userID int64) error {
	if err := c.trk.Clear(ctx, userID); err != nil {
		return err
	}
	c.cache.Delete(userID)
	return nil
}

// SetNotifications flips the periodic-check preference.
func (c *Core) SetNotifications(ctx context.Context, userID int64, enabled bool) error {
	return c.trk.SetNotify(ctx, userID, enabled)
}

// NotificationsEnabled reports the current preference.
func (c *Core) NotificationsEnabled(ctx context.Context, userID int64) (bool, error) {
	return c.trk.Notify(ctx, userID)
}

// CheckNow runs an on-demand pass over the user's full tracked set,
// honoring the caller's deadline, and caches the outcome. The tracked set
// is snapshotted up front: a concurrent Clear affects the next check, not
// this one.
func (c *Core) CheckNow(ctx context.Context, userID int64) (checker.Result, error) {
	nums, err := c.trk.List(ctx, userID)
	if err != nil {
		return checker.Result{}, err
	}
	res := c.chk.RunChunked(ctx, nums, c.batchCfg)
	res.UserID = userID
	if len(nums) > 0 {
		c.cache.Put(userID, res)
	}
	return res, nil
}

// CachedResults re-derives a view from the user's most recent pass
// without re-checking. The second return is false when no pass is cached.
func (c *Core) CachedResults(userID int64, onlyRestricted bool) ([]checker.Item, bool) {
	return c.cache.Filter(userID, func(it checker.Item) bool {
		return !onlyRestricted || it.Status == source.StatusRestricted
	})
}
