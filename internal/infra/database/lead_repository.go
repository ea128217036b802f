package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type BufferedLeadRepository struct {
	DB *sql.DB
}

func NewBufferedLeadRepository(db *sql.DB) *BufferedLeadRepository {
	return &BufferedLeadRepository{DB: db}
}

const bufferedLeadColumns = `id, organization_id, namespace, email, external_person_id, payload, status,
	brand_id, run_id, actor_id, created_at, updated_at`

func (r *BufferedLeadRepository) Insert(ctx context.Context, lead *entity.BufferedLead) error {
	query := `
		INSERT INTO buffered_leads (` + bufferedLeadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.DB.ExecContext(ctx, query,
		lead.ID,
		lead.OrganizationID,
		lead.Namespace,
		lead.Email,
		nullString(lead.ExternalPersonID),
		nullJSON(lead.Payload),
		lead.Status,
		nullString(lead.BrandID),
		nullString(lead.RunID),
		nullString(lead.ActorID),
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return entity.ErrLeadAlreadyBuffered
		}
		return err
	}
	return nil
}

func (r *BufferedLeadRepository) NextBuffered(ctx context.Context, orgID, namespace string) (*entity.BufferedLead, error) {
	query := `
		SELECT ` + bufferedLeadColumns + `
		FROM buffered_leads
		WHERE organization_id = $1 AND namespace = $2 AND status = 'buffered'
		ORDER BY (email = '') ASC, created_at ASC
		LIMIT 1
	`
	lead, err := scanBufferedLead(r.DB.QueryRowContext(ctx, query, orgID, namespace))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lead, err
}

func (r *BufferedLeadRepository) ExistsByExternalPersonID(ctx context.Context, orgID, namespace, externalPersonID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM buffered_leads
			WHERE organization_id = $1 AND namespace = $2 AND external_person_id = $3
		)
	`
	var exists bool
	err := r.DB.QueryRowContext(ctx, query, orgID, namespace, externalPersonID).Scan(&exists)
	return exists, err
}

func (r *BufferedLeadRepository) UpdateEnrichment(ctx context.Context, id, email string, payload json.RawMessage) error {
	query := `UPDATE buffered_leads SET email = $2, payload = $3, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, entity.NormalizeEmail(email), nullJSON(payload))
}

func (r *BufferedLeadRepository) MarkServed(ctx context.Context, id string) error {
	query := `UPDATE buffered_leads SET status = 'served', updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *BufferedLeadRepository) MarkSkipped(ctx context.Context, id string) error {
	query := `UPDATE buffered_leads SET status = 'skipped', updated_at = NOW() WHERE id = $1 AND status = 'buffered'`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

func (r *BufferedLeadRepository) CountByStatus(ctx context.Context, orgID, namespace string) (map[entity.LeadStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM buffered_leads
		WHERE organization_id = $1 AND namespace = $2
		GROUP BY status
	`
	rows, err := r.DB.QueryContext(ctx, query, orgID, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[entity.LeadStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[entity.LeadStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *BufferedLeadRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBufferedLead(row rowScanner) (*entity.BufferedLead, error) {
	var (
		l                                   entity.BufferedLead
		externalID, brandID, runID, actorID sql.NullString
		payload                             []byte
		status                              string
	)
	err := row.Scan(
		&l.ID,
		&l.OrganizationID,
		&l.Namespace,
		&l.Email,
		&externalID,
		&payload,
		&status,
		&brandID,
		&runID,
		&actorID,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.ExternalPersonID = externalID.String
	l.Payload = payload
	l.Status = entity.LeadStatus(status)
	l.BrandID = brandID.String
	l.RunID = runID.String
	l.ActorID = actorID.String
	return &l, nil
}
