package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
)

// SQLiteStore keeps sessions in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at path. An empty path
// defaults to $TMPDIR/auction-advisor/sessions.db; ":memory:" opens a
// throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "auction-advisor", "sessions.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			snapshot     TEXT NOT NULL,
			alert_config TEXT NOT NULL DEFAULT '{}',
			watch_lists  TEXT NOT NULL DEFAULT '[]',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq            INTEGER NOT NULL,
			candidate_id   INTEGER NOT NULL,
			candidate_name TEXT NOT NULL,
			position       TEXT NOT NULL,
			owner          TEXT NOT NULL,
			price          TEXT NOT NULL,
			expected       TEXT NOT NULL,
			purchased_at   INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			alert_id   TEXT NOT NULL,
			level      TEXT NOT NULL,
			category   TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			priority   INTEGER NOT NULL,
			channels   TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession inserts or replaces a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	p, err := encodeSession(rec)
	if err != nil {
		return SessionRecord{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, snapshot, alert_config, watch_lists, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			name         = excluded.name,
			snapshot     = excluded.snapshot,
			alert_config = excluded.alert_config,
			watch_lists  = excluded.watch_lists,
			updated_at   = excluded.updated_at`,
		rec.ID, rec.Name, string(p.snapshot), string(p.alertConfig), string(p.watchLists),
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("save session: %w", err)
	}
	return rec, nil
}

// LoadSession loads a session by ID, or the latest one when id is empty.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (SessionRecord, error) {
	const cols = `SELECT id, name, snapshot, alert_config, watch_lists, created_at, updated_at FROM sessions`
	var row *sql.Row
	if id == "" {
		row = s.db.QueryRowContext(ctx, cols+` ORDER BY updated_at DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, cols+` WHERE id = ?`, id)
	}

	var (
		rec                  SessionRecord
		snapshot, cfg, lists string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &snapshot, &cfg, &lists, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, ErrNotFound
		}
		return SessionRecord{}, fmt.Errorf("load session: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if err := decodeSession(&rec, sessionPayload{
		snapshot:    []byte(snapshot),
		alertConfig: []byte(cfg),
		watchLists:  []byte(lists),
	}); err != nil {
		return SessionRecord{}, err
	}
	return sanitize(rec), nil
}

// AppendPurchase writes one purchase. A repeated sequence number replaces
// the earlier row.
func (s *SQLiteStore) AppendPurchase(ctx context.Context, rec PurchaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases
			(session_id, seq, candidate_id, candidate_name, position, owner, price, expected, purchased_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (session_id, seq) DO UPDATE SET
			candidate_id   = excluded.candidate_id,
			candidate_name = excluded.candidate_name,
			position       = excluded.position,
			owner          = excluded.owner,
			price          = excluded.price,
			expected       = excluded.expected,
			purchased_at   = excluded.purchased_at`,
		rec.SessionID, rec.Seq, rec.CandidateID, rec.CandidateName, string(rec.Position),
		rec.Owner, rec.Price.String(), rec.Expected.String(), rec.PurchasedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append purchase: %w", err)
	}
	return nil
}

// ListPurchases returns the audit log of a session in sequence order.
func (s *SQLiteStore) ListPurchases(ctx context.Context, sessionID string) ([]PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, candidate_id, candidate_name, position, owner, price, expected, purchased_at
		FROM purchases WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	records := make([]PurchaseRecord, 0)
	for rows.Next() {
		var (
			rec             PurchaseRecord
			pos             string
			price, expected string
			at              int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.CandidateID, &rec.CandidateName,
			&pos, &rec.Owner, &price, &expected, &at); err != nil {
			return nil, err
		}
		rec.Position = catalog.Position(pos)
		rec.PurchasedAt = time.Unix(0, at).UTC()
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if rec.Expected, err = decimal.NewFromString(expected); err != nil {
			return nil, fmt.Errorf("parse expected: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ClearPurchases removes the audit log of a session.
func (s *SQLiteStore) ClearPurchases(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear purchases: %w", err)
	}
	return nil
}

// RecordAlert persists a delivered alert.
func (s *SQLiteStore) RecordAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	channels, err := encodeChannels(rec.Channels)
	if err != nil {
		return AlertRecord{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(session_id, alert_id, level, category, title, message, priority, channels, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.SessionID, rec.AlertID, string(rec.Level), string(rec.Category), rec.Title, rec.Message,
		rec.Priority, string(channels), rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("record alert: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return AlertRecord{}, fmt.Errorf("record alert id: %w", err)
	}
	return rec, nil
}

// ListAlerts returns the most recent alerts of a session, newest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, sessionID string, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, alert_id, level, category, title, message, priority, channels, created_at
		FROM alerts WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec             AlertRecord
			level, category string
			channels        string
			at              int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.AlertID, &level, &category,
			&rec.Title, &rec.Message, &rec.Priority, &channels, &at); err != nil {
			return nil, err
		}
		rec.Level = alertcfg.Level(level)
		rec.Category = alertcfg.Category(category)
		rec.CreatedAt = time.Unix(0, at).UTC()
		if rec.Channels, err = decodeChannels([]byte(channels)); err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	return alerts, rows.Err()
}
