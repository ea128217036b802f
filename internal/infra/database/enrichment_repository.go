package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type EnrichmentRepository struct {
	DB *sql.DB
}

func NewEnrichmentRepository(db *sql.DB) *EnrichmentRepository {
	return &EnrichmentRepository{DB: db}
}

func (r *EnrichmentRepository) FindByExternalPersonID(ctx context.Context, externalPersonID string) (*entity.Enrichment, error) {
	query := `
		SELECT id, external_person_id, email, first_name, last_name, title, organization_name, raw_response, enriched_at
		FROM enrichments
		WHERE external_person_id = $1
	`
	var (
		e                                   entity.Enrichment
		email                               sql.NullString
		firstName, lastName, title, orgName sql.NullString
		raw                                 []byte
	)
	err := r.DB.QueryRowContext(ctx, query, externalPersonID).Scan(
		&e.ID, &e.ExternalPersonID, &email, &firstName, &lastName, &title, &orgName, &raw, &e.EnrichedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if email.Valid {
		e.Email = &email.String
	}
	e.FirstName = firstName.String
	e.LastName = lastName.String
	e.Title = title.String
	e.OrganizationName = orgName.String
	e.RawResponse = raw
	return &e, nil
}

// InsertIfAbsent is a no-op for a person already cached. An address cached
// under a different person id returns entity.ErrEnrichmentEmailTaken.
func (r *EnrichmentRepository) InsertIfAbsent(ctx context.Context, e *entity.Enrichment) (bool, error) {
	query := `
		INSERT INTO enrichments (
			id, external_person_id, email, first_name, last_name, title, organization_name, raw_response, enriched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_person_id) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.ExternalPersonID,
		nullString(e.EmailValue()),
		nullString(e.FirstName),
		nullString(e.LastName),
		nullString(e.Title),
		nullString(e.OrganizationName),
		nullJSON(e.RawResponse),
		e.EnrichedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, entity.ErrEnrichmentEmailTaken
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
