package domain

import (
	"fmt"
	"time"
)

// Chatbot represents a configured conversational agent in a workspace
type Chatbot struct {
	ID                string
	WorkspaceID       string
	Name              string
	Model             string
	SystemInstruction string
	// LeadCapture enables the reserved addLead tool.
	LeadCapture bool
	// WebSearch enables provider-side web grounding.
	WebSearch bool
	Actions   []WebhookAction
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookAction represents a caller-defined tool backed by an HTTP endpoint.
// Parameters are validated into a typed schema when the chatbot is saved,
// never parsed ad hoc at call time.
type WebhookAction struct {
	ID          string
	Name        string
	Description string
	URL         string
	Method      string // GET or POST
	Headers     map[string]string
	Parameters  ParamSchema
}

// ParamSchema is a restricted JSON-schema tree describing the arguments a
// webhook action accepts.
type ParamSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]ParamSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *ParamSchema           `json:"items,omitempty"`
}

// Schema types accepted for webhook action parameters
const (
	SchemaTypeObject  = "object"
	SchemaTypeString  = "string"
	SchemaTypeNumber  = "number"
	SchemaTypeInteger = "integer"
	SchemaTypeBoolean = "boolean"
	SchemaTypeArray   = "array"
)

// NewChatbot creates a new Chatbot instance
func NewChatbot(id, workspaceID, name, model, systemInstruction string, createdAt time.Time) *Chatbot {
	return &Chatbot{
		ID:                id,
		WorkspaceID:       workspaceID,
		Name:              name,
		Model:             model,
		SystemInstruction: systemInstruction,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

// ValidateChatbot validates a Chatbot instance including its webhook actions
func ValidateChatbot(c *Chatbot) error {
	if c == nil {
		return fmt.Errorf("chatbot cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chatbot ID is required")
	}

	if c.WorkspaceID == "" {
		return fmt.Errorf("chatbot WorkspaceID is required")
	}

	if c.Name == "" {
		return fmt.Errorf("chatbot Name is required")
	}

	seen := make(map[string]bool, len(c.Actions))
	for i := range c.Actions {
		if err := ValidateWebhookAction(&c.Actions[i]); err != nil {
			return err
		}
		if seen[c.Actions[i].Name] {
			return fmt.Errorf("duplicate webhook action name: %s", c.Actions[i].Name)
		}
		seen[c.Actions[i].Name] = true
	}

	return nil
}

// ValidateWebhookAction validates a WebhookAction instance
func ValidateWebhookAction(a *WebhookAction) error {
	if a == nil {
		return fmt.Errorf("webhook action cannot be nil")
	}

	if a.Name == "" {
		return fmt.Errorf("webhook action Name is required")
	}

	if a.Name == ReservedToolAddLead {
		return fmt.Errorf("webhook action name %q is reserved", ReservedToolAddLead)
	}

	if a.URL == "" {
		return fmt.Errorf("webhook action URL is required")
	}

	if a.Method != "GET" && a.Method != "POST" {
		return fmt.Errorf("webhook action Method must be GET or POST, got %q", a.Method)
	}

	if a.Parameters.Type != SchemaTypeObject {
		return fmt.Errorf("webhook action Parameters must be an object schema, got %q", a.Parameters.Type)
	}

	return validateParamSchema(a.Parameters)
}

func validateParamSchema(s ParamSchema) error {
	switch s.Type {
	case SchemaTypeObject:
		for name, prop := range s.Properties {
			if name == "" {
				return fmt.Errorf("schema property name cannot be empty")
			}
			if err := validateParamSchema(prop); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
		}
		for _, req := range s.Required {
			if _, ok := s.Properties[req]; !ok {
				return fmt.Errorf("required property %q is not declared", req)
			}
		}
		return nil
	case SchemaTypeArray:
		if s.Items == nil {
			return fmt.Errorf("array schema requires items")
		}
		return validateParamSchema(*s.Items)
	case SchemaTypeString, SchemaTypeNumber, SchemaTypeInteger, SchemaTypeBoolean:
		return nil
	default:
		return fmt.Errorf("unsupported schema type %q", s.Type)
	}
}
