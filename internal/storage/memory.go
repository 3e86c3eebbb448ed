package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps the snapshot for the lifetime of the process. A fresh
// store always loads empty.
type MemoryStore struct {
	mu         sync.Mutex
	snap       Snapshot
	deliveries []DeliveryRecord
}

func NewMemory() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Durable() bool { return false }
func (m *MemoryStore) Close() error  { return nil }

func (m *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{IDs: append([]string(nil), m.snap.IDs...), LastUpdate: m.snap.LastUpdate}, nil
}

func (m *MemoryStore) Save(ctx context.Context, s Snapshot) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{IDs: append([]string(nil), s.IDs...), LastUpdate: s.LastUpdate}
	return nil
}

func (m *MemoryStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, r)
	return nil
}

// Deliveries returns a copy of the recorded deliveries.
func (m *MemoryStore) Deliveries() []DeliveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeliveryRecord(nil), m.deliveries...)
}

// RecentDeliveries returns up to limit records, newest first.
func (m *MemoryStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeliveryRecord, 0, min(limit, len(m.deliveries)))
	for i := len(m.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.deliveries[i])
	}
	return out, nil
}
