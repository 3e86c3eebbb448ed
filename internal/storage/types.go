package storage

import (
	"context"
	"time"
)

const (
	ModeDurable   = "durable"
	ModeEphemeral = "ephemeral"

	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config configures storage.
//
// Mode "ephemeral" forces the memory driver whatever Driver says; the first
// cycle after every start is then a bootstrap cycle.
type Config struct {
	Mode        string
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is the persisted set of seen ids.
type Snapshot struct {
	IDs        []string
	LastUpdate time.Time
}

func (s Snapshot) Len() int { return len(s.IDs) }

// DeliveryRecord is one channel outcome for one entry. Operator journal only,
// nothing reads it back for correctness.
type DeliveryRecord struct {
	At      time.Time `json:"at"`
	EntryID string    `json:"entry_id"`
	Title   string    `json:"title"`
	Channel string    `json:"channel"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"err,omitempty"`
	TookMS  int64     `json:"took_ms"`
}

// DeliveryReader is implemented by stores that can read their journal back
// (sqlite, memory). The notifier seeds its history from it at startup.
type DeliveryReader interface {
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}
