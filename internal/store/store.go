// Package store persists CacheEntry rows (C2's durable backing) in
// Postgres via pgx, following the pool-wrapped *sql.DB idiom used
// elsewhere in this codebase's database access.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"

	"digestgate/internal/model"
)

// Store wraps a pooled database handle.
type Store struct {
	DB *sql.DB
}

// New builds a Store around an already-configured, already-pooled DB.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Insert persists a new CacheEntry. Callers treat this as fire-and-forget:
// failures are logged by the caller, never propagated into the response
// path.
func (s *Store) Insert(ctx context.Context, entry model.CacheEntry) error {
	respJSON, err := json.Marshal(entry.Response)
	if err != nil {
		return err
	}
	queryJSON, err := json.Marshal(entry.Query)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO search_cache (query_digest, query, response, created_at, expire_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.QueryDigest, nullableJSON(queryJSON), nullableJSON(respJSON), entry.CreatedAt, entry.ExpireAt)
	return err
}

// MostRecent returns the newest CacheEntry for digest, or (nil, nil) if
// none exists.
func (s *Store) MostRecent(ctx context.Context, digest string) (*model.CacheEntry, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT query_digest, query, response, created_at, expire_at
		FROM search_cache
		WHERE query_digest = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, digest)

	var (
		queryDigest string
		queryRaw    pqtype.NullRawMessage
		respRaw     pqtype.NullRawMessage
		createdAt   time.Time
		expireAt    time.Time
	)
	if err := row.Scan(&queryDigest, &queryRaw, &respRaw, &createdAt, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	entry := &model.CacheEntry{
		QueryDigest: queryDigest,
		CreatedAt:   createdAt,
		ExpireAt:    expireAt,
	}
	if queryRaw.Valid {
		_ = json.Unmarshal(queryRaw.RawMessage, &entry.Query)
	}
	if respRaw.Valid {
		_ = json.Unmarshal(respRaw.RawMessage, &entry.Response)
	}
	return entry, nil
}

// DeleteExpired removes entries whose expire_at has passed, for the
// background sweeper.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_cache WHERE expire_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableJSON(b []byte) pqtype.NullRawMessage {
	if len(b) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}
}
