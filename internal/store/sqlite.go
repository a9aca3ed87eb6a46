package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"offline-worker/internal/common/config"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
)

// UpgradeFunc runs inside the version-change transaction when the store is
// opened at a higher version than previously persisted. It is called exactly
// once, before any other operation on the handle proceeds.
type UpgradeFunc func(tx *sqlx.Tx, oldVersion, newVersion int) error

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// Open opens (or creates) the database at cfg.Path, enables WAL mode, and
// brings the schema to cfg.SchemaVersion by invoking upgrade within a single
// transaction. Opening at a version lower than the persisted one fails:
// older handles are blocked rather than racing the schema. Every failure is
// returned as STORAGE_UNAVAILABLE so callers can degrade to the memory store.
func Open(cfg config.StoreConfig, upgrade UpgradeFunc, log logger.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError(fmt.Errorf("opening sqlite db: %w", err))
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.NewStorageUnavailableError(fmt.Errorf("enabling WAL mode: %w", err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, apperrors.NewStorageUnavailableError(fmt.Errorf("enabling foreign keys: %w", err))
	}
	// Serialize overlapping writers instead of failing them immediately.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		db.Close()
		return nil, apperrors.NewStorageUnavailableError(fmt.Errorf("setting busy timeout: %w", err))
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(cfg.SchemaVersion, upgrade); err != nil {
		db.Close()
		return nil, apperrors.NewStorageUnavailableError(err)
	}

	return s, nil
}

// migrate reads the persisted schema version and, when behind, runs the
// upgrade callback inside the transaction that also records the new version.
// A crash mid-upgrade rolls the whole thing back and leaves the old schema
// intact.
func (s *SQLiteStore) migrate(version int, upgrade UpgradeFunc) error {
	if _, err := s.db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("ensuring schema_version table: %w", err)
	}

	var current int
	if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if current > version {
		return fmt.Errorf("store is at schema version %d, newer than requested %d: refusing to open", current, version)
	}
	if current == version {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning upgrade transaction: %w", err)
	}
	defer tx.Rollback()

	if upgrade != nil {
		if err := upgrade(tx, current, version); err != nil {
			return fmt.Errorf("upgrading schema from v%d to v%d: %w", current, version, err)
		}
	}

	var after int
	if err := tx.Get(&after, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("re-reading schema version: %w", err)
	}
	if after < version {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upgrade: %w", err)
	}

	s.log.Info("schema upgraded", map[string]interface{}{
		"oldVersion": current,
		"newVersion": version,
	})
	return nil
}

// DefaultUpgrade applies the built-in ordered migration list for every
// version in (oldVersion, newVersion].
func DefaultUpgrade(tx *sqlx.Tx, oldVersion, newVersion int) error {
	for _, m := range migrations {
		if m.version <= oldVersion || m.version > newVersion {
			continue
		}
		if _, err := tx.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// LatestSchemaVersion is the version the built-in migrations produce.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Durable reports that SQLite records survive restarts.
func (s *SQLiteStore) Durable() bool { return true }

// --- queued requests ---

type queuedRequestRow struct {
	ID         string    `db:"id"`
	Tag        string    `db:"tag"`
	URL        string    `db:"url"`
	Method     string    `db:"method"`
	Headers    string    `db:"headers"`
	Body       string    `db:"body"`
	EnqueuedAt time.Time `db:"enqueued_at"`
	Attempts   int       `db:"attempts"`
}

func (r queuedRequestRow) toModel() (models.QueuedRequest, error) {
	headers := map[string]string{}
	if r.Headers != "" {
		if err := json.Unmarshal([]byte(r.Headers), &headers); err != nil {
			return models.QueuedRequest{}, fmt.Errorf("decoding headers for %s: %w", r.ID, err)
		}
	}
	return models.QueuedRequest{
		ID:  r.ID,
		Tag: models.OperationTag(r.Tag),
		Request: models.SerializedRequest{
			URL:     r.URL,
			Method:  r.Method,
			Headers: headers,
			Body:    r.Body,
		},
		EnqueuedAt: r.EnqueuedAt,
		Attempts:   r.Attempts,
	}, nil
}

func (s *SQLiteStore) PutRequest(ctx context.Context, req models.QueuedRequest) error {
	headers, err := json.Marshal(req.Request.Headers)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queued_requests (id, tag, url, method, headers, body, enqueued_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, string(req.Tag), req.Request.URL, req.Request.Method,
		string(headers), req.Request.Body, req.EnqueuedAt.UTC(), req.Attempts,
	)
	if err != nil {
		return fmt.Errorf("inserting queued request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*models.QueuedRequest, error) {
	var row queuedRequestRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM queued_requests WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting queued request: %w", err)
	}
	req, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *SQLiteStore) ListRequestsByTag(ctx context.Context, tag models.OperationTag) ([]models.QueuedRequest, error) {
	var rows []queuedRequestRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM queued_requests WHERE tag = ? ORDER BY enqueued_at ASC, id ASC`,
		string(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("listing queued requests: %w", err)
	}

	out := make([]models.QueuedRequest, 0, len(rows))
	for _, row := range rows {
		req, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteRequest(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queued_requests WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting queued request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountRequestsByTag(ctx context.Context, tag models.OperationTag) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM queued_requests WHERE tag = ?", string(tag))
	if err != nil {
		return 0, fmt.Errorf("counting queued requests: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE queued_requests SET attempts = attempts + 1 WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("incrementing attempts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrNotFound
	}

	var attempts int
	if err := tx.GetContext(ctx, &attempts, "SELECT attempts FROM queued_requests WHERE id = ?", id); err != nil {
		return 0, fmt.Errorf("reading attempts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return attempts, nil
}

// --- notifications ---

func (s *SQLiteStore) SaveNotification(ctx context.Context, n models.StoredNotification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notifications (id, user_id, title, body, icon, url, timestamp, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, n.Icon, n.URL, n.Timestamp.UTC(), n.Read,
	)
	if err != nil {
		return fmt.Errorf("saving notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*models.StoredNotification, error) {
	var n models.StoredNotification
	err := s.db.GetContext(ctx, &n, "SELECT * FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting notification: %w", err)
	}
	return &n, nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context) ([]models.StoredNotification, error) {
	var out []models.StoredNotification
	err := s.db.SelectContext(ctx, &out, "SELECT * FROM notifications ORDER BY timestamp DESC")
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListNotificationsByUser(ctx context.Context, userID int64) ([]models.StoredNotification, error) {
	var out []models.StoredNotification
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM notifications WHERE user_id = ? ORDER BY timestamp DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications by user: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	// Keyed by notification_id: re-marking overwrites the pending receipt
	// instead of creating a second one.
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO read_receipts (notification_id, timestamp, read)
		VALUES (?, ?, 1)`,
		id, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting read receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// --- read receipts ---

func (s *SQLiteStore) PendingReceipts(ctx context.Context) ([]models.ReadReceipt, error) {
	var out []models.ReadReceipt
	err := s.db.SelectContext(ctx, &out, "SELECT * FROM read_receipts ORDER BY timestamp ASC")
	if err != nil {
		return nil, fmt.Errorf("listing read receipts: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteReceipts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM read_receipts WHERE notification_id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("building receipt delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting read receipts: %w", err)
	}
	return nil
}

// --- push subscription ---

func (s *SQLiteStore) SaveSubscription(ctx context.Context, sub models.PushSubscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO push_subscriptions (endpoint, p256dh_key, auth_key, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.UserID, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving push subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubscription(ctx context.Context) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.db.GetContext(ctx, &sub,
		"SELECT * FROM push_subscriptions ORDER BY created_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting push subscription: %w", err)
	}
	return &sub, nil
}
