package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
)

const (
	createSessionsSQL = `CREATE TABLE IF NOT EXISTS sessions (
        id           UUID PRIMARY KEY,
        name         TEXT NOT NULL DEFAULT '',
        snapshot     JSONB NOT NULL,
        alert_config JSONB NOT NULL DEFAULT '{}',
        watch_lists  JSONB NOT NULL DEFAULT '[]',
        created_at   TIMESTAMPTZ NOT NULL,
        updated_at   TIMESTAMPTZ NOT NULL
    );`

	createPurchasesSQL = `CREATE TABLE IF NOT EXISTS purchases (
        session_id     UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
        seq            INTEGER NOT NULL,
        candidate_id   INTEGER NOT NULL,
        candidate_name TEXT NOT NULL,
        position       TEXT NOT NULL,
        owner          TEXT NOT NULL,
        price          NUMERIC NOT NULL,
        expected       NUMERIC NOT NULL,
        purchased_at   TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (session_id, seq)
    );`

	createAlertsSQL = `CREATE TABLE IF NOT EXISTS alerts (
        id         BIGSERIAL PRIMARY KEY,
        session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
        alert_id   TEXT NOT NULL,
        level      TEXT NOT NULL,
        category   TEXT NOT NULL,
        title      TEXT NOT NULL,
        message    TEXT NOT NULL,
        priority   INTEGER NOT NULL,
        channels   TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	createAlertsIndexSQL = `CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts (session_id, created_at DESC);`

	upsertSessionSQL = `INSERT INTO sessions (
        id,
        name,
        snapshot,
        alert_config,
        watch_lists,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (id) DO UPDATE
    SET
        name         = EXCLUDED.name,
        snapshot     = EXCLUDED.snapshot,
        alert_config = EXCLUDED.alert_config,
        watch_lists  = EXCLUDED.watch_lists,
        updated_at   = EXCLUDED.updated_at;`

	selectSessionSQL = `SELECT
        id::text,
        name,
        snapshot,
        alert_config,
        watch_lists,
        created_at,
        updated_at
    FROM sessions
    WHERE id = $1;`

	selectLatestSessionSQL = `SELECT
        id::text,
        name,
        snapshot,
        alert_config,
        watch_lists,
        created_at,
        updated_at
    FROM sessions
    ORDER BY updated_at DESC
    LIMIT 1;`

	upsertPurchaseSQL = `INSERT INTO purchases (
        session_id,
        seq,
        candidate_id,
        candidate_name,
        position,
        owner,
        price,
        expected,
        purchased_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (session_id, seq) DO UPDATE
    SET
        candidate_id   = EXCLUDED.candidate_id,
        candidate_name = EXCLUDED.candidate_name,
        position       = EXCLUDED.position,
        owner          = EXCLUDED.owner,
        price          = EXCLUDED.price,
        expected       = EXCLUDED.expected,
        purchased_at   = EXCLUDED.purchased_at;`

	listPurchasesSQL = `SELECT
        session_id::text,
        seq,
        candidate_id,
        candidate_name,
        position,
        owner,
        price::text,
        expected::text,
        purchased_at
    FROM purchases
    WHERE session_id = $1
    ORDER BY seq;`

	deletePurchasesSQL = `DELETE FROM purchases WHERE session_id = $1;`

	insertAlertSQL = `INSERT INTO alerts (
        session_id,
        alert_id,
        level,
        category,
        title,
        message,
        priority,
        channels,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id;`

	listAlertsSQL = `SELECT
        id,
        session_id::text,
        alert_id,
        level,
        category,
        title,
        message,
        priority,
        channels,
        created_at
    FROM alerts
    WHERE session_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2;`
)

// PostgresStore keeps sessions in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createSessionsSQL, createPurchasesSQL, createAlertsSQL, createAlertsIndexSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveSession inserts or replaces a session.
func (s *PostgresStore) SaveSession(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SessionRecord{}, err
	}

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
	if _, execErr := pool.Exec(ctx, upsertSessionSQL,
		rec.ID,
		rec.Name,
		p.snapshot,
		p.alertConfig,
		p.watchLists,
		rec.CreatedAt,
		rec.UpdatedAt,
	); execErr != nil {
		return SessionRecord{}, fmt.Errorf("save session: %w", execErr)
	}
	return rec, nil
}

// LoadSession loads a session by ID, or the latest one when id is empty.
func (s *PostgresStore) LoadSession(ctx context.Context, id string) (SessionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SessionRecord{}, err
	}

	var row pgx.Row
	if id == "" {
		row = pool.QueryRow(ctx, selectLatestSessionSQL)
	} else {
		if _, parseErr := uuid.Parse(id); parseErr != nil {
			return SessionRecord{}, ErrNotFound
		}
		row = pool.QueryRow(ctx, selectSessionSQL, id)
	}

	var rec SessionRecord
	var p sessionPayload
	if scanErr := row.Scan(
		&rec.ID,
		&rec.Name,
		&p.snapshot,
		&p.alertConfig,
		&p.watchLists,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return SessionRecord{}, ErrNotFound
		}
		return SessionRecord{}, fmt.Errorf("load session: %w", scanErr)
	}
	if err := decodeSession(&rec, p); err != nil {
		return SessionRecord{}, err
	}
	return sanitize(rec), nil
}

// AppendPurchase writes one purchase. A repeated sequence number replaces
// the earlier row.
func (s *PostgresStore) AppendPurchase(ctx context.Context, rec PurchaseRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertPurchaseSQL,
		rec.SessionID,
		rec.Seq,
		rec.CandidateID,
		rec.CandidateName,
		string(rec.Position),
		rec.Owner,
		rec.Price.String(),
		rec.Expected.String(),
		rec.PurchasedAt,
	); execErr != nil {
		return fmt.Errorf("append purchase: %w", execErr)
	}
	return nil
}

// ListPurchases returns the audit log of a session in sequence order.
func (s *PostgresStore) ListPurchases(ctx context.Context, sessionID string) ([]PurchaseRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPurchasesSQL, sessionID)
	if queryErr != nil {
		return nil, fmt.Errorf("list purchases: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PurchaseRecord, 0)
	for rows.Next() {
		rec, scanErr := scanPurchase(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ClearPurchases removes the audit log of a session.
func (s *PostgresStore) ClearPurchases(ctx context.Context, sessionID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deletePurchasesSQL, sessionID); execErr != nil {
		return fmt.Errorf("clear purchases: %w", execErr)
	}
	return nil
}

// RecordAlert persists a delivered alert.
func (s *PostgresStore) RecordAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	channels := rec.Channels
	if channels == nil {
		channels = []string{}
	}

	if scanErr := pool.QueryRow(ctx, insertAlertSQL,
		rec.SessionID,
		rec.AlertID,
		string(rec.Level),
		string(rec.Category),
		rec.Title,
		rec.Message,
		rec.Priority,
		channels,
		rec.CreatedAt,
	).Scan(&rec.ID); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("record alert: %w", scanErr)
	}
	return rec, nil
}

// ListAlerts returns the most recent alerts of a session, newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, sessionID string, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, queryErr := pool.Query(ctx, listAlertsSQL, sessionID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var level, category string
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.AlertID,
			&level,
			&category,
			&rec.Title,
			&rec.Message,
			&rec.Priority,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Level = alertcfg.Level(level)
		rec.Category = alertcfg.Category(category)
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanPurchase(rows pgx.Rows) (PurchaseRecord, error) {
	var (
		rec         PurchaseRecord
		position    string
		priceStr    string
		expectedStr string
	)
	if err := rows.Scan(
		&rec.SessionID,
		&rec.Seq,
		&rec.CandidateID,
		&rec.CandidateName,
		&position,
		&rec.Owner,
		&priceStr,
		&expectedStr,
		&rec.PurchasedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PurchaseRecord{}, fmt.Errorf("parse price: %w", err)
	}
	expected, err := decimal.NewFromString(expectedStr)
	if err != nil {
		return PurchaseRecord{}, fmt.Errorf("parse expected: %w", err)
	}
	rec.Position = catalog.Position(position)
	rec.Price = price
	rec.Expected = expected
	return rec, nil
}
