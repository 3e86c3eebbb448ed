package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"
)

func openTestFile(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "ticket_data.json")
	st, err := Open(Config{Driver: DriverFile, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	st, _ := openTestFile(t)
	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.IDs)
	}
	if !st.Durable() {
		t.Fatalf("file store must be durable")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	st, path := openTestFile(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := st.Save(ctx, Snapshot{IDs: []string{"b", "a"}, LastUpdate: at}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(snap.IDs, []string{"a", "b"}) {
		t.Fatalf("ids = %v", snap.IDs)
	}
	if !snap.LastUpdate.Equal(at) {
		t.Fatalf("last_update = %v, want %v", snap.LastUpdate, at)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"ids"`) || !strings.Contains(string(b), `"last_update"`) {
		t.Fatalf("unexpected layout: %s", b)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestFileStoreFailedSaveKeepsLastGoodState(t *testing.T) {
	st, path := openTestFile(t)
	ctx := context.Background()

	if err := st.Save(ctx, Snapshot{IDs: []string{"a", "b"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A directory where the tmp file should go makes the next write fail.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	err := st.Save(ctx, Snapshot{IDs: []string{"c"}})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("Save err = %v, want ErrPersistence", err)
	}

	snap, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(snap.IDs, []string{"a", "b"}) {
		t.Fatalf("ids after failed save = %v", snap.IDs)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	st, path := openTestFile(t)
	if err := os.WriteFile(path, []byte(`{"ids": [`), 0o600); err != nil {
		t.Fatal(err)
	}
	snap, err := st.Load(context.Background())
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("corrupt file must load empty, got %v", snap.IDs)
	}
}

func TestFileStoreLegacyKeys(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{name: "hashes", doc: `{"hashes": ["h1", "h2"], "last_update": "2024-05-01T10:00:00.123456"}`, want: []string{"h1", "h2"}},
		{name: "items", doc: `{"items": ["i1"], "last_update": "2024-05-01T10:00:00"}`, want: []string{"i1"}},
		{name: "ids win", doc: `{"ids": ["x"], "hashes": ["h1"]}`, want: []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, path := openTestFile(t)
			if err := os.WriteFile(path, []byte(tt.doc), 0o600); err != nil {
				t.Fatal(err)
			}
			snap, err := st.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(snap.IDs, tt.want) {
				t.Fatalf("ids = %v, want %v", snap.IDs, tt.want)
			}
		})
	}
}

func TestFileStoreDeliveriesJournal(t *testing.T) {
	st, path := openTestFile(t)
	ctx := context.Background()
	for _, outcome := range []string{"delivered", "failed"} {
		if err := st.AppendDelivery(ctx, DeliveryRecord{EntryID: "a", Channel: "discord", Outcome: outcome}); err != nil {
			t.Fatalf("AppendDelivery: %v", err)
		}
	}
	journal := strings.TrimSuffix(path, ".json") + ".deliveries.jsonl"
	b, err := os.ReadFile(journal)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 2 {
		t.Fatalf("journal lines = %d, want 2", n)
	}
}

func TestOpenEphemeralForcesMemory(t *testing.T) {
	st, err := Open(Config{Mode: ModeEphemeral, Driver: DriverFile, Path: filepath.Join(t.TempDir(), "s.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if st.Durable() {
		t.Fatalf("ephemeral mode must not be durable")
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Fatalf("got %T, want *MemoryStore", st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	if !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestMemoryStoreStartsEmpty(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	snap, err := m.Load(ctx)
	if err != nil || snap.Len() != 0 {
		t.Fatalf("Load = %v, %v", snap, err)
	}
	ids := []string{"a"}
	if err := m.Save(ctx, Snapshot{IDs: ids}); err != nil {
		t.Fatal(err)
	}
	ids[0] = "mutated"
	snap, _ = m.Load(ctx)
	if !reflect.DeepEqual(snap.IDs, []string{"a"}) {
		t.Fatalf("memory store aliased caller slice: %v", snap.IDs)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := Open(Config{Driver: DriverSQLite, Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	snap, err := st.Load(ctx)
	if err != nil || snap.Len() != 0 {
		t.Fatalf("initial Load = %v, %v", snap, err)
	}

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := st.Save(ctx, Snapshot{IDs: []string{"b", "a", "a"}, LastUpdate: at}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Save(ctx, Snapshot{IDs: []string{"c", "a"}, LastUpdate: at}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(snap.IDs, []string{"a", "c"}) {
		t.Fatalf("ids = %v", snap.IDs)
	}
	if !snap.LastUpdate.Equal(at) {
		t.Fatalf("last_update = %v", snap.LastUpdate)
	}

	if err := st.AppendDelivery(ctx, DeliveryRecord{EntryID: "c", Title: "Play C", Channel: "email", Outcome: "failed", Error: "boom"}); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}
	recs, err := st.(DeliveryReader).RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Error != "boom" || recs[0].Channel != "email" {
		t.Fatalf("deliveries = %+v", recs)
	}
}

func TestSQLiteStoreCanceledSaveKeepsState(t *testing.T) {
	st, err := Open(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Save(context.Background(), Snapshot{IDs: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.Save(ctx, Snapshot{IDs: []string{"z"}}); err == nil {
		t.Fatalf("expected error from canceled save")
	}
	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(snap.IDs, []string{"a"}) {
		t.Fatalf("ids = %v", snap.IDs)
	}
}
