package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type CursorRepository struct {
	DB *sql.DB
}

func NewCursorRepository(db *sql.DB) *CursorRepository {
	return &CursorRepository{DB: db}
}

func (r *CursorRepository) Get(ctx context.Context, orgID, namespace string) (*entity.CursorState, error) {
	query := `
		SELECT organization_id, namespace, page, total_pages, exhausted, filters_hash, updated_at
		FROM cursor_states
		WHERE organization_id = $1 AND namespace = $2
	`
	var c entity.CursorState
	err := r.DB.QueryRowContext(ctx, query, orgID, namespace).Scan(
		&c.OrganizationID, &c.Namespace, &c.Page, &c.TotalPages, &c.Exhausted, &c.FiltersHash, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CursorRepository) Save(ctx context.Context, c *entity.CursorState) error {
	query := `
		INSERT INTO cursor_states (organization_id, namespace, page, total_pages, exhausted, filters_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (organization_id, namespace)
		DO UPDATE SET
			page = EXCLUDED.page,
			total_pages = EXCLUDED.total_pages,
			exhausted = EXCLUDED.exhausted,
			filters_hash = EXCLUDED.filters_hash,
			updated_at = NOW()
	`
	_, err := r.DB.ExecContext(ctx, query, c.OrganizationID, c.Namespace, c.Page, c.TotalPages, c.Exhausted, c.FiltersHash)
	return err
}

func (r *CursorRepository) Reset(ctx context.Context, orgID, namespace string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM cursor_states WHERE organization_id = $1 AND namespace = $2`, orgID, namespace)
	return err
}
