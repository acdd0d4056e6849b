package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "fragwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// The whole user table is kept in memory and written as a single JSON
// snapshot on every commit via temp-file + rename, so a crash mid-write
// leaves the previous snapshot intact.
//
// After a failed write the in-memory table is marked dirty and reloaded
// from disk on the next operation rather than trusted.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.Mutex
	users map[int64]UserRecord
	dirty bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &fileStore{log: log, path: path, users: map[int64]UserRecord{}}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) PutUser(ctx context.Context, rec UserRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFreshLocked(); err != nil {
		return err
	}
	prev, had := s.users[rec.UserID]
	s.users[rec.UserID] = rec
	if err := s.commitLocked(); err != nil {
		// Roll back the in-memory view so it matches durable state.
		if had {
			s.users[rec.UserID] = prev
		} else {
			delete(s.users, rec.UserID)
		}
		s.dirty = true
		return err
	}
	return nil
}

func (s *fileStore) GetUser(ctx context.Context, userID int64) (UserRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFreshLocked(); err != nil {
		return UserRecord{}, false, err
	}
	rec, ok := s.users[userID]
	return rec, ok, nil
}

func (s *fileStore) DeleteUser(ctx context.Context, userID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFreshLocked(); err != nil {
		return err
	}
	prev, had := s.users[userID]
	if !had {
		return nil
	}
	delete(s.users, userID)
	if err := s.commitLocked(); err != nil {
		s.users[userID] = prev
		s.dirty = true
		return err
	}
	return nil
}

func (s *fileStore) ListUsers(ctx context.Context) ([]UserRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFreshLocked(); err != nil {
		return nil, err
	}
	out := make([]UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *fileStore) ensureFreshLocked() error {
	if !s.dirty {
		return nil
	}
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *fileStore) loadLocked() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.users = map[int64]UserRecord{}
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var recs []UserRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return fmt.Errorf("%w: corrupt snapshot: %v", ErrUnavailable, err)
	}
	users := make(map[int64]UserRecord, len(recs))
	for _, r := range recs {
		users[r.UserID] = r
	}
	s.users = users
	return nil
}

func (s *fileStore) commitLocked() error {
	recs := make([]UserRecord, 0, len(s.users))
	for _, r := range s.users {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].UserID < recs[j].UserID })

	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
