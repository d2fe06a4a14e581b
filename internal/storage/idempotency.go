package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrIdempotencyCollision is returned when a (key, method, path) row
// already exists — either already processing (concurrent duplicate) or
// already cached (replay candidate, resolved by the middleware reading
// the existing row rather than treating this as an error).
var ErrIdempotencyCollision = errors.New("storage: idempotency key in use")

// InsertProcessingIdempotencyRecord atomically claims a (key, method, path)
// triple via INSERT ... ON CONFLICT DO NOTHING, the SQL analogue of the
// teacher's claim-by-conditional-update pattern. A row whose expires_at
// has passed is deleted first, so an expired claim or cached response no
// longer blocks the key. Returns ErrIdempotencyCollision if an unexpired
// row already exists.
func (q *Queries) InsertProcessingIdempotencyRecord(ctx context.Context, key, method, path string, expiresAt any) error {
	if _, err := q.db.ExecContext(ctx, `
		DELETE FROM idempotency_records
		WHERE key = $1 AND method = $2 AND path = $3 AND expires_at < now()`,
		key, method, path); err != nil {
		return fmt.Errorf("clearing expired idempotency record: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, method, path, state, expires_at)
		VALUES ($1, $2, $3, 'processing', $4)
		ON CONFLICT (key, method, path) DO NOTHING`,
		key, method, path, expiresAt)
	if err != nil {
		return fmt.Errorf("claiming idempotency record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking idempotency claim: %w", err)
	}
	if n == 0 {
		return ErrIdempotencyCollision
	}
	return nil
}

// GetIdempotencyRecord fetches the record for a (key, method, path) triple.
func (q *Queries) GetIdempotencyRecord(ctx context.Context, key, method, path string) (*IdempotencyRecord, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT key, method, path, state, response_status, response_body, response_headers, created_at, expires_at
		FROM idempotency_records WHERE key = $1 AND method = $2 AND path = $3`, key, method, path)

	var r IdempotencyRecord
	var status sql.NullInt64
	err := row.Scan(&r.Key, &r.Method, &r.Path, &r.State, &status, &r.ResponseBody, &r.ResponseHeaders, &r.CreatedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning idempotency record: %w", err)
	}
	r.ResponseStatus = int(status.Int64)
	return &r, nil
}

// CacheIdempotencyResponse transitions a record from processing to cached,
// storing the response and extending its expiry to the long TTL.
func (q *Queries) CacheIdempotencyResponse(ctx context.Context, key, method, path string, status int, body, headers []byte, expiresAt any) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE idempotency_records
		SET state = 'cached', response_status = $4, response_body = $5, response_headers = $6, expires_at = $7
		WHERE key = $1 AND method = $2 AND path = $3`,
		key, method, path, status, body, headers, expiresAt)
	if err != nil {
		return fmt.Errorf("caching idempotency response: %w", err)
	}
	return nil
}

// DeleteIdempotencyRecord removes a record, used when the underlying
// request failed so the client may safely retry with the same key.
func (q *Queries) DeleteIdempotencyRecord(ctx context.Context, key, method, path string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM idempotency_records WHERE key = $1 AND method = $2 AND path = $3`,
		key, method, path)
	if err != nil {
		return fmt.Errorf("deleting idempotency record: %w", err)
	}
	return nil
}

// PurgeExpiredIdempotencyRecords deletes rows past their expiry.
func (q *Queries) PurgeExpiredIdempotencyRecords(ctx context.Context, now any) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purging expired idempotency records: %w", err)
	}
	return res.RowsAffected()
}
