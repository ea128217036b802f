package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type IdempotencyRepository struct {
	DB *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{DB: db}
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	var rec entity.IdempotencyRecord
	var response []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT key, organization_id, response, created_at FROM idempotency_records WHERE key = $1`,
		key,
	).Scan(&rec.Key, &rec.OrganizationID, &response, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Response = response
	return &rec, nil
}

func (r *IdempotencyRepository) InsertIfAbsent(ctx context.Context, rec *entity.IdempotencyRecord) (bool, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	response := []byte(rec.Response)
	if response == nil {
		response = []byte{}
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, organization_id, response, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`, rec.Key, rec.OrganizationID, response, createdAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, key string, response []byte) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE idempotency_records SET response = $2 WHERE key = $1 AND octet_length(response) = 0`,
		key, response,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE key = $1 AND octet_length(response) = 0`,
		key,
	)
	return err
}

func (r *IdempotencyRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM idempotency_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
