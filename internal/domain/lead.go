package domain

import (
	"fmt"
	"time"
)

// ReservedToolAddLead is the name of the built-in lead-capture tool. Webhook
// actions may not shadow it.
const ReservedToolAddLead = "addLead"

// LeadStatus represents the follow-up state of a captured lead
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusLost      LeadStatus = "lost"
	LeadStatusCustomer  LeadStatus = "customer"
)

// Lead represents a business contact captured by the addLead tool during a
// conversation
type Lead struct {
	ID             string
	WorkspaceID    string
	Name           string
	Email          string
	Phone          string
	InquirySummary string
	Status         LeadStatus
	CapturedAt     time.Time
}

// NewLead creates a new Lead instance in the new state
func NewLead(id, workspaceID, name, email, phone, inquirySummary string, capturedAt time.Time) *Lead {
	return &Lead{
		ID:             id,
		WorkspaceID:    workspaceID,
		Name:           name,
		Email:          email,
		Phone:          phone,
		InquirySummary: inquirySummary,
		Status:         LeadStatusNew,
		CapturedAt:     capturedAt,
	}
}

// ValidateLead validates a Lead instance
func ValidateLead(l *Lead) error {
	if l == nil {
		return fmt.Errorf("lead cannot be nil")
	}

	if l.ID == "" {
		return fmt.Errorf("lead ID is required")
	}

	if l.WorkspaceID == "" {
		return fmt.Errorf("lead WorkspaceID is required")
	}

	if l.Name == "" {
		return fmt.Errorf("lead Name is required")
	}

	if l.InquirySummary == "" {
		return fmt.Errorf("lead InquirySummary is required")
	}

	if !isValidLeadStatus(l.Status) {
		return fmt.Errorf("lead Status is invalid: %s", l.Status)
	}

	return nil
}

// isValidLeadStatus checks if a LeadStatus is valid
func isValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost, LeadStatusCustomer:
		return true
	}
	return false
}
