package storage

import (
	"context"
	"errors"
	"strings"

	logx "fragwatch/pkg/logx"
)

// Store is the persistence API used by the tracker.
//
// Writes are atomic per user record: after a failed Put the durable state
// is either the old record or the new one, never a partial merge.
type Store interface {
	PutUser(ctx context.Context, rec UserRecord) error
	GetUser(ctx context.Context, userID int64) (UserRecord, bool, error)
	DeleteUser(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]UserRecord, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
