package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
)

// Collection names. Assets are cached per portfolio so a pull can replace
// one portfolio's asset set without touching the others.
const (
	CollectionPortfolios = "portfolios"
	CollectionProfile    = "profile"

	metaLastUpdated = "last_updated"
)

// CollectionAssets returns the cache collection name for one portfolio's assets.
func CollectionAssets(portfolioID string) string {
	return "assets:" + portfolioID
}

// CacheStore is the durable last-known-good snapshot of remote state plus
// the ordered change queue. Writes are last-writer-wins at collection
// granularity; the queue is FIFO by insertion.
type CacheStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewCacheStore opens (or creates) the SQLite cache with WAL mode enabled.
func NewCacheStore(dbPath string) (*CacheStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		// position preserves FIFO enqueue order across restarts
		`CREATE TABLE IF NOT EXISTS change_queue (
			position INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &CacheStore{db: db, nowFn: time.Now}, nil
}

// SetNowFunc injects a clock for tests.
func (s *CacheStore) SetNowFunc(fn func() time.Time) {
	s.nowFn = fn
}

// ReplaceCollection atomically swaps the entire cached collection for the
// given payloads (keyed by entity id) and advances the last-updated mark.
func (s *CacheStore) ReplaceCollection(ctx context.Context, collection string, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", collection, err)
	}

	for id, payload := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (collection, id, payload) VALUES (?, ?, ?)",
			collection, id, string(payload),
		); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", collection, err)
		}
	}

	if err := s.touchLastUpdatedTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// PutEntity upserts a single cached entity (the optimistic local-edit path)
// and advances the last-updated mark.
func (s *CacheStore) PutEntity(ctx context.Context, collection, id string, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (collection, id, payload) VALUES (?, ?, ?) ON CONFLICT(collection, id) DO UPDATE SET payload=excluded.payload",
		collection, id, string(payload),
	); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}

	if err := s.touchLastUpdatedTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteEntity removes a single cached entity. Missing ids are a no-op.
func (s *CacheStore) DeleteEntity(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM collections WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// GetAll returns every cached payload of a collection, keyed by entity id.
// An absent collection comes back as an empty map, not an error.
func (s *CacheStore) GetAll(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload FROM collections WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer rows.Close()

	entries := make(map[string][]byte)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entries[id] = []byte(payload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// Enqueue appends a change to the end of the queue and persists it
// immediately (no batching): a crash loses at most the in-flight enqueue.
func (s *CacheStore) Enqueue(ctx context.Context, t domain.ChangeType, payload json.RawMessage) (domain.QueuedChange, error) {
	if !t.Valid() {
		return domain.QueuedChange{}, fmt.Errorf("unknown change type: %s", t)
	}

	now := s.nowFn()
	change := domain.QueuedChange{
		ID:             domain.NewChangeID(now),
		Type:           t,
		Payload:        payload,
		CreatedAtUnixM: now.UnixMicro(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO change_queue (id, type, payload, created_at, retry_count) VALUES (?, ?, ?, ?, 0)",
		change.ID, string(change.Type), string(change.Payload), change.CreatedAtUnixM,
	)
	if err != nil {
		return domain.QueuedChange{}, fmt.Errorf("failed to enqueue change: %w", err)
	}

	return change, nil
}

// PutQueue appends pre-built entries in order, preserving their ids and
// retry counts. Used to restore a queue wholesale.
func (s *CacheStore) PutQueue(ctx context.Context, entries []domain.QueuedChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO change_queue (id, type, payload, created_at, retry_count) VALUES (?, ?, ?, ?, ?)",
			c.ID, string(c.Type), string(c.Payload), c.CreatedAtUnixM, c.RetryCount,
		); err != nil {
			return fmt.Errorf("failed to insert queue entry %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetQueue returns every pending change in enqueue (FIFO) order.
func (s *CacheStore) GetQueue(ctx context.Context) ([]domain.QueuedChange, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, payload, created_at, retry_count FROM change_queue ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var queue []domain.QueuedChange
	for rows.Next() {
		var c domain.QueuedChange
		var typ, payload string
		if err := rows.Scan(&c.ID, &typ, &payload, &c.CreatedAtUnixM, &c.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		c.Type = domain.ChangeType(typ)
		c.Payload = json.RawMessage(payload)
		queue = append(queue, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return queue, nil
}

// RemoveFromQueue deletes a change by id. Removing a missing id is a no-op.
func (s *CacheStore) RemoveFromQueue(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM change_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry %s: %w", id, err)
	}
	return nil
}

// IncrementRetry bumps a change's retry count by one and returns the new
// count. Unknown ids return 0 without error (the entry is already gone).
func (s *CacheStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE change_queue SET retry_count = retry_count + 1 WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry for %s: %w", id, err)
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT retry_count FROM change_queue WHERE id = ?", id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count for %s: %w", id, err)
	}
	return count, nil
}

// PendingCount returns the number of queued changes.
func (s *CacheStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}

// LastUpdated returns the timestamp of the most recent successful cache
// write. The second return is false when nothing has been written yet.
func (s *CacheStore) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", metaLastUpdated).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last_updated: %w", err)
	}

	var unixMicro int64
	if _, err := fmt.Sscanf(value, "%d", &unixMicro); err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt last_updated value %q: %w", value, err)
	}
	return time.UnixMicro(unixMicro), true, nil
}

func (s *CacheStore) touchLastUpdatedTx(ctx context.Context, tx *sql.Tx) error {
	nowMicro := s.nowFn().UnixMicro()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		metaLastUpdated, fmt.Sprintf("%d", nowMicro), nowMicro,
	)
	if err != nil {
		return fmt.Errorf("failed to touch last_updated: %w", err)
	}
	return nil
}

// ClearAll wipes every key this store owns in one transaction.
// Used only on sign-out; leaves no partial residue.
func (s *CacheStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"collections", "change_queue", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *CacheStore) Close() error {
	return s.db.Close()
}
