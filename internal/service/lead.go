package service

import (
	"context"
	"time"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// LeadRepositoryInterface defines the repository interface for lead persistence
type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error
}

// LeadService persists leads captured by the addLead tool and serves the
// leads API.
type LeadService struct {
	repo    LeadRepositoryInterface
	uuidGen UUIDGenerator
}

// NewLeadService creates a new LeadService instance
func NewLeadService(repo LeadRepositoryInterface) *LeadService {
	return &LeadService{
		repo:    repo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewLeadServiceWithUUIDGen creates a LeadService with a custom UUID generator (for testing)
func NewLeadServiceWithUUIDGen(repo LeadRepositoryInterface, uuidGen UUIDGenerator) *LeadService {
	return &LeadService{
		repo:    repo,
		uuidGen: uuidGen,
	}
}

// CaptureLead implements the LeadSink consumed by the chat orchestrator.
func (s *LeadService) CaptureLead(ctx context.Context, workspaceID string, input LeadInput) error {
	ctx, span := telemetry.StartSpan(ctx, "LeadService.CaptureLead", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		Operation:   "capture",
	})
	defer span.End()

	lead := domain.NewLead(s.uuidGen.NewString(), workspaceID, input.Name, input.Email, input.Phone, input.InquirySummary, time.Now().UTC())

	if err := domain.ValidateLead(lead); err != nil {
		return err
	}

	return s.repo.Create(ctx, lead)
}

// GetByID retrieves a lead by ID
func (s *LeadService) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByWorkspace retrieves all leads captured in a workspace
func (s *LeadService) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Lead, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID)
}

// UpdateStatus moves a lead through the follow-up pipeline.
func (s *LeadService) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	next := domain.Lead{
		ID:             lead.ID,
		WorkspaceID:    lead.WorkspaceID,
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		InquirySummary: lead.InquirySummary,
		Status:         status,
		CapturedAt:     lead.CapturedAt,
	}
	if err := domain.ValidateLead(&next); err != nil {
		return err
	}

	return s.repo.UpdateStatus(ctx, id, status)
}
