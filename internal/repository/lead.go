package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantor-labs/vantor/internal/domain"
)

// LeadRepository handles lead persistence.
type LeadRepository struct {
	pool *pgxpool.Pool
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO leads (id, workspace_id, name, email, phone, inquiry_summary, status, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lead.ID, lead.WorkspaceID, lead.Name, nullableString(lead.Email), nullableString(lead.Phone), lead.InquirySummary, lead.Status, lead.CapturedAt,
	)
	return err
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	var email, phone *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, email, phone, inquiry_summary, status, captured_at
		 FROM leads WHERE id = $1`,
		id,
	).Scan(&lead.ID, &lead.WorkspaceID, &lead.Name, &email, &phone, &lead.InquirySummary, &lead.Status, &lead.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, err
	}
	if email != nil {
		lead.Email = *email
	}
	if phone != nil {
		lead.Phone = *phone
	}
	return &lead, nil
}

func (r *LeadRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, workspace_id, name, email, phone, inquiry_summary, status, captured_at
		 FROM leads WHERE workspace_id = $1 ORDER BY captured_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		var lead domain.Lead
		var email, phone *string
		if err := rows.Scan(&lead.ID, &lead.WorkspaceID, &lead.Name, &email, &phone, &lead.InquirySummary, &lead.Status, &lead.CapturedAt); err != nil {
			return nil, err
		}
		if email != nil {
			lead.Email = *email
		}
		if phone != nil {
			lead.Phone = *phone
		}
		leads = append(leads, &lead)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}
