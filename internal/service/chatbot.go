package service

import (
	"context"
	"time"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// ChatbotRepositoryInterface defines the repository interface for chatbot persistence
type ChatbotRepositoryInterface interface {
	Create(ctx context.Context, chatbot *domain.Chatbot) error
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error)
	Update(ctx context.Context, chatbot *domain.Chatbot) error
	Delete(ctx context.Context, id string) error
}

// ChatbotService handles chatbot configuration, validating webhook action
// parameter schemas at save time.
type ChatbotService struct {
	repo    ChatbotRepositoryInterface
	uuidGen UUIDGenerator
}

// NewChatbotService creates a new ChatbotService instance
func NewChatbotService(repo ChatbotRepositoryInterface) *ChatbotService {
	return &ChatbotService{
		repo:    repo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewChatbotServiceWithUUIDGen creates a ChatbotService with a custom UUID generator (for testing)
func NewChatbotServiceWithUUIDGen(repo ChatbotRepositoryInterface, uuidGen UUIDGenerator) *ChatbotService {
	return &ChatbotService{
		repo:    repo,
		uuidGen: uuidGen,
	}
}

// ChatbotInput represents the caller-supplied chatbot configuration
type ChatbotInput struct {
	WorkspaceID       string
	Name              string
	Model             string
	SystemInstruction string
	LeadCapture       bool
	WebSearch         bool
	Actions           []domain.WebhookAction
}

// Create validates and persists a new chatbot configuration.
func (s *ChatbotService) Create(ctx context.Context, input ChatbotInput) (*domain.Chatbot, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatbotService.Create", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "create",
	})
	defer span.End()

	now := time.Now().UTC()
	chatbot := domain.NewChatbot(s.uuidGen.NewString(), input.WorkspaceID, input.Name, input.Model, input.SystemInstruction, now)
	chatbot.LeadCapture = input.LeadCapture
	chatbot.WebSearch = input.WebSearch
	chatbot.Actions = assignActionIDs(input.Actions, s.uuidGen)

	if err := domain.ValidateChatbot(chatbot); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chatbot configuration", err)
	}

	if err := s.repo.Create(ctx, chatbot); err != nil {
		return nil, err
	}

	return chatbot, nil
}

// Update replaces a chatbot's configuration, re-validating action schemas.
func (s *ChatbotService) Update(ctx context.Context, id string, input ChatbotInput) (*domain.Chatbot, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatbotService.Update", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		ChatbotID:   id,
		Operation:   "update",
	})
	defer span.End()

	chatbot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chatbot.Name = input.Name
	chatbot.Model = input.Model
	chatbot.SystemInstruction = input.SystemInstruction
	chatbot.LeadCapture = input.LeadCapture
	chatbot.WebSearch = input.WebSearch
	chatbot.Actions = assignActionIDs(input.Actions, s.uuidGen)
	chatbot.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateChatbot(chatbot); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chatbot configuration", err)
	}

	if err := s.repo.Update(ctx, chatbot); err != nil {
		return nil, err
	}

	return chatbot, nil
}

// GetByID retrieves a chatbot by ID
func (s *ChatbotService) GetByID(ctx context.Context, id string) (*domain.Chatbot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByWorkspace retrieves all chatbots in a workspace
func (s *ChatbotService) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID)
}

// Delete removes a chatbot configuration
func (s *ChatbotService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func assignActionIDs(actions []domain.WebhookAction, uuidGen UUIDGenerator) []domain.WebhookAction {
	out := make([]domain.WebhookAction, len(actions))
	copy(out, actions)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuidGen.NewString()
		}
	}
	return out
}
