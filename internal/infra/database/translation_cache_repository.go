package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TranslationCacheRepository is the shared tier of the filter translation
// cache. Expired rows read as misses until the janitor deletes them.
type TranslationCacheRepository struct {
	DB *sql.DB
}

func NewTranslationCacheRepository(db *sql.DB) *TranslationCacheRepository {
	return &TranslationCacheRepository{DB: db}
}

func (r *TranslationCacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT value FROM translation_cache WHERE key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *TranslationCacheRepository) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO translation_cache (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, time.Now().UTC().Add(ttl))
	return err
}

func (r *TranslationCacheRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM translation_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
