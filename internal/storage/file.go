package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"
)

// fileStore keeps the snapshot in one JSON document.
//
// Files:
//   - <path>                        (snapshot, replaced atomically)
//   - <prefix>.deliveries.jsonl     (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path           string
	deliveriesFile *os.File
}

// fileSnapshot is the on-disk shape. Hashes and Items are the keys older
// deployments wrote; they are read but never written.
type fileSnapshot struct {
	IDs        []string `json:"ids"`
	Hashes     []string `json:"hashes,omitempty"`
	Items      []string `json:"items,omitempty"`
	LastUpdate string   `json:"last_update"`
}

// legacyTimeLayouts covers timestamps written without a zone offset.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, apperr.Config("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Persistence("create storage dir", err)
	}

	df, err := os.OpenFile(prefix+".deliveries.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, apperr.Persistence("open deliveries journal", err)
	}

	return &fileStore{log: log, path: path, deliveriesFile: df}, nil
}

func (s *fileStore) Durable() bool { return true }

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveriesFile == nil {
		return nil
	}
	err := s.deliveriesFile.Close()
	s.deliveriesFile = nil
	return err
}

func (s *fileStore) Load(ctx context.Context) (Snapshot, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, apperr.Persistence("read snapshot", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return Snapshot{}, apperr.Persistence("read snapshot", errors.New("empty file"))
	}

	var fs fileSnapshot
	if err := json.Unmarshal(b, &fs); err != nil {
		return Snapshot{}, apperr.Persistence("decode snapshot", err)
	}
	ids := fs.IDs
	switch {
	case ids != nil:
	case fs.Hashes != nil:
		ids = fs.Hashes
	case fs.Items != nil:
		ids = fs.Items
	}
	return Snapshot{IDs: ids, LastUpdate: parseLastUpdate(fs.LastUpdate)}, nil
}

func (s *fileStore) Save(ctx context.Context, snap Snapshot) error {
	_ = ctx
	ids := append([]string(nil), snap.IDs...)
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	at := snap.LastUpdate
	if at.IsZero() {
		at = time.Now()
	}
	b, err := json.MarshalIndent(fileSnapshot{IDs: ids, LastUpdate: at.Format(time.RFC3339Nano)}, "", "  ")
	if err != nil {
		return apperr.Persistence("encode snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, append(b, '\n')); err != nil {
		return apperr.Persistence("write snapshot", err)
	}
	return nil
}

func (s *fileStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveriesFile == nil {
		return apperr.Persistence("append delivery", errors.New("deliveries journal closed"))
	}
	if err := json.NewEncoder(s.deliveriesFile).Encode(r); err != nil {
		return apperr.Persistence("append delivery", err)
	}
	return nil
}

// writeFileAtomic writes to <path>.tmp, fsyncs and renames over path. The tmp
// file is removed on any failure so path keeps its previous content.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	// Persist the rename itself. Not every platform allows syncing a directory.
	if d, derr := os.Open(filepath.Dir(path)); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func parseLastUpdate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
