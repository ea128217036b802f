package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type ServedLeadRepository struct {
	DB *sql.DB
}

func NewServedLeadRepository(db *sql.DB) *ServedLeadRepository {
	return &ServedLeadRepository{DB: db}
}

func (r *ServedLeadRepository) IsServed(ctx context.Context, orgID, scopeKey, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM served_leads
			WHERE organization_id = $1 AND scope_key = $2 AND email = $3
		)
	`
	var served bool
	err := r.DB.QueryRowContext(ctx, query, orgID, scopeKey, entity.NormalizeEmail(email)).Scan(&served)
	return served, err
}

func (r *ServedLeadRepository) ServedEmails(ctx context.Context, orgID, scopeKey string, emails []string) (map[string]bool, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, entity.NormalizeEmail(e))
	}

	query := `
		SELECT email FROM served_leads
		WHERE organization_id = $1 AND scope_key = $2 AND email = ANY($3)
	`
	rows, err := r.DB.QueryContext(ctx, query, orgID, scopeKey, pq.Array(normalized))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out[email] = true
	}
	return out, rows.Err()
}

// InsertIfAbsent is a single conditional insert; concurrent callers racing
// on the same (organization, scope, email) see exactly one true.
func (r *ServedLeadRepository) InsertIfAbsent(ctx context.Context, s *entity.ServedLead) (bool, error) {
	query := `
		INSERT INTO served_leads (
			id, organization_id, scope_key, namespace, brand_id, email, external_person_id,
			buffered_lead_id, payload, parent_run_id, run_id, actor_id, served_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (organization_id, scope_key, email) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query,
		s.ID,
		s.OrganizationID,
		s.ScopeKey,
		s.Namespace,
		nullString(s.BrandID),
		entity.NormalizeEmail(s.Email),
		nullString(s.ExternalPersonID),
		nullString(s.BufferedLeadID),
		nullJSON(s.Payload),
		nullString(s.ParentRunID),
		nullString(s.RunID),
		nullString(s.ActorID),
		s.ServedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ServedLeadRepository) List(ctx context.Context, filter entity.ServedLeadFilter) ([]*entity.ServedLead, error) {
	query := `
		SELECT id, organization_id, scope_key, namespace, brand_id, email, external_person_id,
			buffered_lead_id, payload, parent_run_id, run_id, actor_id, served_at
		FROM served_leads
		WHERE organization_id = $1 AND scope_key = $2
		ORDER BY served_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.DB.QueryContext(ctx, query, filter.OrganizationID, filter.ScopeKey, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ServedLead
	for rows.Next() {
		var (
			s                               entity.ServedLead
			brandID, externalID, bufferedID sql.NullString
			parentRunID, runID, actorID     sql.NullString
			payload                         []byte
		)
		if err := rows.Scan(
			&s.ID, &s.OrganizationID, &s.ScopeKey, &s.Namespace, &brandID, &s.Email, &externalID,
			&bufferedID, &payload, &parentRunID, &runID, &actorID, &s.ServedAt,
		); err != nil {
			return nil, err
		}
		s.BrandID = brandID.String
		s.ExternalPersonID = externalID.String
		s.BufferedLeadID = bufferedID.String
		s.Payload = payload
		s.ParentRunID = parentRunID.String
		s.RunID = runID.String
		s.ActorID = actorID.String
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ServedLeadRepository) Count(ctx context.Context, orgID, scopeKey string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM served_leads WHERE organization_id = $1 AND scope_key = $2`,
		orgID, scopeKey,
	).Scan(&n)
	return n, err
}
