package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantor-labs/vantor/internal/domain"
)

// ChatbotRepository handles chatbot configuration persistence. Webhook
// actions are stored as a JSONB document alongside the row; they are only
// ever read and written as a whole with their chatbot.
type ChatbotRepository struct {
	pool *pgxpool.Pool
}

func NewChatbotRepository(pool *pgxpool.Pool) *ChatbotRepository {
	return &ChatbotRepository{pool: pool}
}

// storedAction is the JSONB shape of a webhook action.
type storedAction struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url"`
	Method      string             `json:"method"`
	Headers     map[string]string  `json:"headers,omitempty"`
	Parameters  domain.ParamSchema `json:"parameters"`
}

func (r *ChatbotRepository) Create(ctx context.Context, chatbot *domain.Chatbot) error {
	actions, err := marshalActions(chatbot.Actions)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO chatbots (id, workspace_id, name, model, system_instruction, lead_capture, web_search, actions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		chatbot.ID, chatbot.WorkspaceID, chatbot.Name, chatbot.Model, chatbot.SystemInstruction,
		chatbot.LeadCapture, chatbot.WebSearch, actions, chatbot.CreatedAt, chatbot.UpdatedAt,
	)
	return err
}

func (r *ChatbotRepository) GetByID(ctx context.Context, id string) (*domain.Chatbot, error) {
	var c domain.Chatbot
	var actions []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, model, system_instruction, lead_capture, web_search, actions, created_at, updated_at
		 FROM chatbots WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Model, &c.SystemInstruction, &c.LeadCapture, &c.WebSearch, &actions, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatbotNotFound
		}
		return nil, err
	}

	c.Actions, err = unmarshalActions(actions)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChatbotRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, workspace_id, name, model, system_instruction, lead_capture, web_search, actions, created_at, updated_at
		 FROM chatbots WHERE workspace_id = $1 ORDER BY updated_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatbots []*domain.Chatbot
	for rows.Next() {
		var c domain.Chatbot
		var actions []byte
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Model, &c.SystemInstruction, &c.LeadCapture, &c.WebSearch, &actions, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Actions, err = unmarshalActions(actions)
		if err != nil {
			return nil, err
		}
		chatbots = append(chatbots, &c)
	}
	return chatbots, rows.Err()
}

func (r *ChatbotRepository) Update(ctx context.Context, chatbot *domain.Chatbot) error {
	actions, err := marshalActions(chatbot.Actions)
	if err != nil {
		return err
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE chatbots SET name = $1, model = $2, system_instruction = $3, lead_capture = $4, web_search = $5, actions = $6, updated_at = $7
		 WHERE id = $8`,
		chatbot.Name, chatbot.Model, chatbot.SystemInstruction, chatbot.LeadCapture, chatbot.WebSearch, actions, chatbot.UpdatedAt, chatbot.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatbotNotFound
	}
	return nil
}

func (r *ChatbotRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM chatbots WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatbotNotFound
	}
	return nil
}

func marshalActions(actions []domain.WebhookAction) ([]byte, error) {
	stored := make([]storedAction, 0, len(actions))
	for _, a := range actions {
		stored = append(stored, storedAction(a))
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook actions: %w", err)
	}
	return data, nil
}

func unmarshalActions(data []byte) ([]domain.WebhookAction, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var stored []storedAction
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook actions: %w", err)
	}
	actions := make([]domain.WebhookAction, 0, len(stored))
	for _, s := range stored {
		actions = append(actions, domain.WebhookAction(s))
	}
	return actions, nil
}
