package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fragwatch/internal/checker"
	"fragwatch/internal/resultcache"
	"fragwatch/internal/source"
	"fragwatch/internal/storage"
	"fragwatch/internal/tracker"
	logx "fragwatch/pkg/logx"
)

type scriptedSource struct {
	mu     sync.Mutex
	status map[string]source.Status
	calls  int
}

func (s *scriptedSource) Check(ctx context.Context, id string) (source.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if st, ok := s.status[id]; ok {
		return st, nil
	}
	return source.StatusAvailable, nil
}

func newCore(t *testing.T, src *scriptedSource) *Core {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "users.json"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	trk := tracker.New(tracker.Config{}, st, logx.Nop())
	cfg := checker.Config{
		PaceMin:     time.Millisecond,
		PaceMax:     2 * time.Millisecond,
		MaxAttempts: 1,
	}
	return NewCore(trk, checker.New(source.SingleSession{Source: src}, logx.Nop()), resultcache.New(), cfg, logx.Nop())
}

func TestCheckNowCachesResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &scriptedSource{status: map[string]source.Status{
		"888222222222": source.StatusRestricted,
	}}
	c := newCore(t, src)

	if _, err := c.AddNumbers(ctx, 1, "888111111111 888222222222"); err != nil {
		t.Fatalf("AddNumbers: %v", err)
	}
	res, err := c.CheckNow(ctx, 1)
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if len(res.Items) != 2 || res.UserID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	all, ok := c.CachedResults(1, false)
	if !ok || len(all) != 2 {
		t.Fatalf("CachedResults(all): ok=%v n=%d", ok, len(all))
	}
	restricted, ok := c.CachedResults(1, true)
	if !ok || len(restricted) != 1 || restricted[0].Number != "888222222222" {
		t.Fatalf("CachedResults(restricted) = %v, ok=%v", restricted, ok)
	}
}

func TestCheckNowEmptySet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &scriptedSource{}
	c := newCore(t, src)

	res, err := c.CheckNow(ctx, 1)
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("expected empty result, got %d items", len(res.Items))
	}
	if src.calls != 0 {
		t.Fatalf("source calls = %d, want 0", src.calls)
	}
	if _, ok := c.CachedResults(1, false); ok {
		t.Fatal("empty pass should not populate the cache")
	}
}

func TestClearDropsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCore(t, &scriptedSource{})

	if _, err := c.AddNumbers(ctx, 1, "888111111111"); err != nil {
		t.Fatalf("AddNumbers: %v", err)
	}
	if _, err := c.CheckNow(ctx, 1); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if err := c.ClearNumbers(ctx, 1); err != nil {
		t.Fatalf("ClearNumbers: %v", err)
	}
	if _, ok := c.CachedResults(1, false); ok {
		t.Fatal("cache should be dropped on clear")
	}
	nums, err := c.ListNumbers(ctx, 1)
	if err != nil || len(nums) != 0 {
		t.Fatalf("ListNumbers after clear: %v, %v", nums, err)
	}
}

func TestConcurrentClearAndCheckNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCore(t, &scriptedSource{})

	if _, err := c.AddNumbers(ctx, 1, "888111111111 888222222222 888333333333"); err != nil {
		t.Fatalf("AddNumbers: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.ClearNumbers(ctx, 1)
	}()
	go func() {
		defer wg.Done()
		res, err := c.CheckNow(ctx, 1)
		if err != nil {
			t.Errorf("CheckNow: %v", err)
			return
		}
		// The pass saw either the full snapshot or the cleared one.
		if n := len(res.Items); n != 0 && n != 3 {
			t.Errorf("torn snapshot: %d items", n)
		}
	}()
	wg.Wait()
}
