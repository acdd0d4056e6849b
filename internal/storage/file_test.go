package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "fragwatch/pkg/logx"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFileStore(t)

	rec := UserRecord{
		UserID:    42,
		Numbers:   []string{"888000000001", "888000000002"},
		Notify:    true,
		UpdatedAt: time.Now(),
	}
	if err := st.PutUser(ctx, rec); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	got, ok, err := st.GetUser(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("GetUser: ok=%v err=%v", ok, err)
	}
	if len(got.Numbers) != 2 || got.Numbers[0] != "888000000001" {
		t.Fatalf("unexpected numbers: %v", got.Numbers)
	}
	if !got.Notify {
		t.Fatal("notify flag lost")
	}

	if _, ok, err := st.GetUser(ctx, 7); err != nil || ok {
		t.Fatalf("unknown user: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.PutUser(ctx, UserRecord{UserID: 1, Numbers: []string{"888123456789"}, Notify: true}); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got, ok, err := st2.GetUser(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetUser after reopen: ok=%v err=%v", ok, err)
	}
	if len(got.Numbers) != 1 || got.Numbers[0] != "888123456789" {
		t.Fatalf("unexpected numbers after reopen: %v", got.Numbers)
	}
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFileStore(t)

	if err := st.PutUser(ctx, UserRecord{UserID: 9, Numbers: []string{"888000000009"}}); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	if err := st.DeleteUser(ctx, 9); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := st.DeleteUser(ctx, 9); err != nil {
		t.Fatalf("second DeleteUser: %v", err)
	}
	if _, ok, _ := st.GetUser(ctx, 9); ok {
		t.Fatal("record still present after delete")
	}
}

func TestFileStoreListUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFileStore(t)

	for _, id := range []int64{3, 1, 2} {
		if err := st.PutUser(ctx, UserRecord{UserID: id}); err != nil {
			t.Fatalf("PutUser(%d): %v", id, err)
		}
	}
	recs, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 users, got %d", len(recs))
	}
	for i, want := range []int64{1, 2, 3} {
		if recs[i].UserID != want {
			t.Fatalf("recs[%d].UserID = %d, want %d", i, recs[i].UserID, want)
		}
	}
}

func TestFileStoreFailedCommitRollsBackAndReloads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.PutUser(ctx, UserRecord{UserID: 1, Numbers: []string{"888111111111"}, Notify: true}); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	// A directory squatting on the temp file makes the snapshot write
	// fail mid-commit, regardless of process privileges.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err = st.PutUser(ctx, UserRecord{UserID: 2, Numbers: []string{"888222222222"}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("PutUser error = %v, want ErrUnavailable", err)
	}

	if err := os.Remove(path + ".tmp"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// The failed write must not leak into reads: user 2 never existed.
	if _, ok, err := st.GetUser(ctx, 2); err != nil || ok {
		t.Fatalf("GetUser(2) = ok=%v, err=%v; want absent", ok, err)
	}
	rec, ok, err := st.GetUser(ctx, 1)
	if err != nil || !ok || len(rec.Numbers) != 1 || rec.Numbers[0] != "888111111111" {
		t.Fatalf("GetUser(1) = %+v, ok=%v, err=%v", rec, ok, err)
	}

	// After the failure the store distrusts memory and re-reads the
	// snapshot, so an external change to the file is visible.
	external := `[{"user_id":7,"numbers":["888333333333"],"notify":false,"updated_at":"2026-01-02T03:04:05Z"}]`
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := st.PutUser(ctx, UserRecord{UserID: 3}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("second PutUser error = %v, want ErrUnavailable", err)
	}
	if err := os.Remove(path + ".tmp"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(path, []byte(external), 0o600); err != nil {
		t.Fatalf("rewrite snapshot: %v", err)
	}

	if _, ok, err := st.GetUser(ctx, 7); err != nil || !ok {
		t.Fatalf("GetUser(7) after reload = ok=%v, err=%v; want durable record", ok, err)
	}
	if _, ok, err := st.GetUser(ctx, 1); err != nil || ok {
		t.Fatalf("GetUser(1) after reload = ok=%v, err=%v; memory was trusted over disk", ok, err)
	}
}
