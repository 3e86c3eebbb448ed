package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const metaLastUpdate = "last_update"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, apperr.Config("storage.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Persistence("create storage dir", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Persistence("open sqlite", err)
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
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, apperr.Persistence("migrate sqlite", err)
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

func (s *sqliteStore) Durable() bool { return true }

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen ORDER BY id`)
	if err != nil {
		return Snapshot{}, apperr.Persistence("load snapshot", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Snapshot{}, apperr.Persistence("load snapshot", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, apperr.Persistence("load snapshot", err)
	}

	var at string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastUpdate).Scan(&at)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, apperr.Persistence("load snapshot", err)
	}
	return Snapshot{IDs: ids, LastUpdate: parseLastUpdate(at)}, nil
}

// Save replaces the id set in one transaction; a failure rolls back and the
// previous set stays.
func (s *sqliteStore) Save(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("save snapshot", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM seen`); err != nil {
		return apperr.Persistence("save snapshot", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen(id) VALUES(?)`)
	if err != nil {
		return apperr.Persistence("save snapshot", err)
	}
	defer stmt.Close()
	for _, id := range snap.IDs {
		if _, err = stmt.ExecContext(ctx, id); err != nil {
			return apperr.Persistence("save snapshot", err)
		}
	}

	at := snap.LastUpdate
	if at.IsZero() {
		at = time.Now()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		metaLastUpdate, at.Format(time.RFC3339Nano),
	); err != nil {
		return apperr.Persistence("save snapshot", err)
	}
	if err = tx.Commit(); err != nil {
		return apperr.Persistence("save snapshot", err)
	}
	return nil
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, entry_id, title, channel, outcome, err, took_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.EntryID, r.Title, r.Channel, r.Outcome, nullStr(r.Error), r.TookMS,
	)
	if err != nil {
		return apperr.Persistence("append delivery", err)
	}
	return nil
}

// RecentDeliveries reads the journal back, newest first.
func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, entry_id, title, channel, outcome, COALESCE(err, ''), took_ms
		 FROM deliveries ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Persistence("read deliveries", err)
	}
	defer rows.Close()
	var out []DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		var at string
		if err := rows.Scan(&at, &r.EntryID, &r.Title, &r.Channel, &r.Outcome, &r.Error, &r.TookMS); err != nil {
			return nil, err
		}
		r.At = parseLastUpdate(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
