package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "fragwatch/internal/transport"
	logx "fragwatch/pkg/logx"
)

// fakeAdapter records sends and can fail the first N attempts per chat.
type fakeAdapter struct {
	mu        sync.Mutex
	sent      []string
	failFirst int
	attempts  int
	done      chan struct{}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return nil
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failFirst {
		return kit.MessageRef{}, errors.New("send failed")
	}
	f.sent = append(f.sent, text)
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{done: make(chan struct{})}
	s := New(Config{RatePerSec: 100}, ad, logx.Nop())
	s.Start(context.Background())
	defer s.Stop()

	if err := s.Notify(kit.ChatTarget{ChatID: 1}, "hello", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case <-ad.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	if ad.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", ad.sentCount())
	}
}

func TestNotifyRetriesOnFailure(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFirst: 2, done: make(chan struct{})}
	s := New(Config{RatePerSec: 100, RetryMax: 3, RetryBase: time.Millisecond}, ad, logx.Nop())
	s.Start(context.Background())
	defer s.Stop()

	if err := s.Notify(kit.ChatTarget{ChatID: 1}, "hello", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case <-ad.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered after retries")
	}
}

func TestNotifyWhenStopped(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeAdapter{}, logx.Nop())
	if err := s.Notify(kit.ChatTarget{ChatID: 1}, "x", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestNotifyQueueFull(t *testing.T) {
	t.Parallel()
	// No workers consume yet: start with a cancelled context so the queue
	// fills immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{QueueSize: 1, Workers: 1}, &fakeAdapter{}, logx.Nop())
	s.Start(ctx)
	defer s.Stop()

	// Give workers a moment to observe cancellation.
	time.Sleep(10 * time.Millisecond)

	_ = s.Notify(kit.ChatTarget{ChatID: 1}, "a", nil)
	err := s.Notify(kit.ChatTarget{ChatID: 1}, "b", nil)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
