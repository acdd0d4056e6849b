package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "fragwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutUser(ctx context.Context, rec UserRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	nums, err := json.Marshal(rec.Numbers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, numbers, notify, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   numbers=excluded.numbers, notify=excluded.notify, updated_at=excluded.updated_at`,
		rec.UserID, string(nums), boolInt(rec.Notify), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *sqliteStore) GetUser(ctx context.Context, userID int64) (UserRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, numbers, notify, updated_at FROM users WHERE user_id = ?`, userID)
	rec, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, true, nil
}

func (s *sqliteStore) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, numbers, notify, updated_at FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (UserRecord, error) {
	var (
		rec    UserRecord
		nums   string
		notify int
		at     string
	)
	if err := row.Scan(&rec.UserID, &nums, &notify, &at); err != nil {
		return UserRecord{}, err
	}
	if err := json.Unmarshal([]byte(nums), &rec.Numbers); err != nil {
		return UserRecord{}, err
	}
	rec.Notify = notify != 0
	if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
