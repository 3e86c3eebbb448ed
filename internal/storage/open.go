package storage

import (
	"context"
	"strings"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"
)

// Store is the snapshot persistence API used by the poll loop and notifier.
type Store interface {
	// Load returns the last persisted snapshot. A missing snapshot is an empty
	// one with a nil error; unreadable state is an empty one plus an
	// ErrPersistence error the caller logs and continues past.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the persisted snapshot. On failure the previous one stays
	// intact.
	Save(ctx context.Context, s Snapshot) error
	AppendDelivery(ctx context.Context, r DeliveryRecord) error
	Durable() bool
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == ModeEphemeral {
		log.Info("ephemeral storage mode; snapshot is kept in memory only")
		return NewMemory(), nil
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverFile:
		return openFile(cfg, log)
	case DriverSQLite, "sqlite3":
		return openSQLite(cfg, log)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, apperr.Config("unknown storage driver: %s", driver)
	}
}
