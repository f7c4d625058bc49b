package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// DefaultChatModel is used when a chatbot does not pin a model.
const DefaultChatModel = "gemini-2.5-flash"

// retrievalLimit is the number of knowledge chunks injected into the system
// instruction per turn.
const retrievalLimit = 4

// User-facing notices emitted by the orchestrator.
const (
	rateLimitedNotice  = "You are sending messages too quickly. Please wait a minute and try again."
	authFailureNotice  = "Authentication error: please verify the configured API key."
	connectivityNotice = "The model could not be reached. Please try again."
)

// ErrProviderAuth marks provider failures caused by a missing or rejected
// API key, distinguished from connectivity failures in user-facing
// diagnostics.
var ErrProviderAuth = errors.New("provider authentication failed")

// ToolCall is a structured request from the model to execute a named action.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ModelFragment is one element of a model response stream. A fragment may
// carry text, grounding citations, a function call, or any combination.
type ModelFragment struct {
	Text    string
	Sources []domain.Source
	Call    *ToolCall
}

// FunctionDecl declares a callable tool to the model.
type FunctionDecl struct {
	Name        string
	Description string
	Parameters  domain.ParamSchema
}

// ChatOptions configures one streamed conversation with the model provider.
type ChatOptions struct {
	Model             string
	SystemInstruction string
	WebSearch         bool
	Functions         []FunctionDecl
	History           []domain.Turn
}

// ChatSession is an open conversation with the model. SendToolResult
// continues the conversation after a function call round-trip.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) iter.Seq2[ModelFragment, error]
	SendToolResult(ctx context.Context, call ToolCall, result map[string]any) iter.Seq2[ModelFragment, error]
}

// ChatProvider opens streaming conversations with a language model.
type ChatProvider interface {
	StartChat(ctx context.Context, opts ChatOptions) (ChatSession, error)
}

// LeadInput carries the fields captured by the reserved addLead tool.
type LeadInput struct {
	Name           string
	Email          string
	Phone          string
	InquirySummary string
}

// LeadSink receives leads captured during conversations.
type LeadSink interface {
	CaptureLead(ctx context.Context, workspaceID string, input LeadInput) error
}

// WebhookRunner executes caller-defined webhook actions.
type WebhookRunner interface {
	Execute(ctx context.Context, action domain.WebhookAction, args map[string]any) map[string]any
}

// StreamChunk is one fragment of a streamed answer. Sources carry only
// citations not yet seen this turn (de-duplicated by URL, first title wins).
type StreamChunk struct {
	Text    string          `json:"text"`
	Sources []domain.Source `json:"sources,omitempty"`
	IsError bool            `json:"isError,omitempty"`
}

// EmitFunc consumes stream chunks in order. Returning an error aborts the
// turn; the underlying provider stream is released via context cancellation.
type EmitFunc func(StreamChunk) error

// StreamInput describes one user-submitted message.
type StreamInput struct {
	Chatbot *domain.Chatbot
	History []domain.Turn
	Message string
}

// ChatService drives a streaming multi-turn exchange with the model,
// injecting retrieved knowledge context and executing tool calls.
type ChatService struct {
	provider ChatProvider
	rag      *RagService
	limiter  RateGate
	webhooks WebhookRunner
	leads    LeadSink
}

// NewChatService creates a new ChatService instance
func NewChatService(provider ChatProvider, rag *RagService, limiter RateGate, webhooks WebhookRunner, leads LeadSink) *ChatService {
	return &ChatService{
		provider: provider,
		rag:      rag,
		limiter:  limiter,
		webhooks: webhooks,
		leads:    leads,
	}
}

// StreamMessage runs one turn: admission check, retrieval, streamed
// generation and at most one serial tool round-trip. All provider failures
// terminate the turn with a single user-visible chunk; the returned error is
// non-nil only when emit itself fails or the input is invalid.
func (s *ChatService) StreamMessage(ctx context.Context, input StreamInput, emit EmitFunc) error {
	if input.Chatbot == nil {
		return domain.NewDomainError(domain.ErrCodeValidation, "chatbot is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.StreamMessage", telemetry.SpanAttributes{
		WorkspaceID: input.Chatbot.WorkspaceID,
		ChatbotID:   input.Chatbot.ID,
		Operation:   "chat",
	})
	defer span.End()

	if s.limiter != nil && !s.limiter.Allow() {
		return emit(StreamChunk{Text: rateLimitedNotice})
	}

	contextBlock := s.retrieveContext(ctx, input.Chatbot.WorkspaceID, input.Message)

	model := input.Chatbot.Model
	if model == "" {
		model = DefaultChatModel
	}

	session, err := s.provider.StartChat(ctx, ChatOptions{
		Model:             model,
		SystemInstruction: buildSystemInstruction(input.Chatbot, contextBlock),
		WebSearch:         input.Chatbot.WebSearch,
		Functions:         buildFunctionDecls(input.Chatbot),
		History:           input.History,
	})
	if err != nil {
		return emit(diagnosticChunk(err))
	}

	acc := &sourceAccumulator{seen: make(map[string]bool)}

	for frag, err := range session.SendMessage(ctx, input.Message) {
		if err != nil {
			return emit(diagnosticChunk(err))
		}

		if frag.Call != nil {
			// Serial single-call tool use: execute the first call,
			// relay the continuation, and end the turn.
			return s.runToolRoundTrip(ctx, input, session, *frag.Call, acc, emit)
		}

		if err := emitFragment(frag, acc, emit); err != nil {
			return err
		}
	}

	return nil
}

// retrieveContext embeds the message and joins the best-matching chunk texts.
// Every failure here degrades to context-free generation; the turn never
// fails on retrieval.
func (s *ChatService) retrieveContext(ctx context.Context, workspaceID, message string) string {
	if s.rag == nil {
		return ""
	}

	queryEmbedding, err := s.rag.EmbedQuery(ctx, message)
	if err != nil {
		log.Printf("query embedding failed, generating without context: %v", err)
		return ""
	}

	results, err := s.rag.Search(ctx, workspaceID, queryEmbedding, retrievalLimit)
	if err != nil {
		log.Printf("knowledge search failed, generating without context: %v", err)
		return ""
	}

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

func (s *ChatService) runToolRoundTrip(ctx context.Context, input StreamInput, session ChatSession, call ToolCall, acc *sourceAccumulator, emit EmitFunc) error {
	result, err := s.dispatchTool(ctx, input, call, emit)
	if err != nil {
		return err
	}

	for frag, streamErr := range session.SendToolResult(ctx, call, result) {
		if streamErr != nil {
			return emit(diagnosticChunk(streamErr))
		}

		// No tool chaining within a turn.
		if frag.Call != nil {
			continue
		}

		if err := emitFragment(frag, acc, emit); err != nil {
			return err
		}
	}

	return nil
}

// dispatchTool executes the reserved addLead tool or a caller-defined
// webhook action. Tool failures become structured error payloads handed back
// to the model, never hard failures of the turn.
func (s *ChatService) dispatchTool(ctx context.Context, input StreamInput, call ToolCall, emit EmitFunc) (map[string]any, error) {
	if call.Name == domain.ReservedToolAddLead {
		return s.captureLead(ctx, input, call, emit)
	}

	for _, action := range input.Chatbot.Actions {
		if action.Name != call.Name {
			continue
		}

		if err := emit(StreamChunk{Text: fmt.Sprintf("\n*(Running %s...)*\n", action.Name)}); err != nil {
			return nil, err
		}

		if s.webhooks == nil {
			return map[string]any{"error": "webhook execution is not configured"}, nil
		}
		return s.webhooks.Execute(ctx, action, call.Args), nil
	}

	return map[string]any{"error": fmt.Sprintf("unknown function: %s", call.Name)}, nil
}

func (s *ChatService) captureLead(ctx context.Context, input StreamInput, call ToolCall, emit EmitFunc) (map[string]any, error) {
	name, _ := call.Args["name"].(string)
	summary, _ := call.Args["inquirySummary"].(string)
	if name == "" || summary == "" {
		return map[string]any{"error": "name and inquirySummary are required"}, nil
	}

	email, _ := call.Args["email"].(string)
	phone, _ := call.Args["phone"].(string)

	if s.leads == nil {
		return map[string]any{"error": "lead capture is not configured"}, nil
	}

	if err := s.leads.CaptureLead(ctx, input.Chatbot.WorkspaceID, LeadInput{
		Name:           name,
		Email:          email,
		Phone:          phone,
		InquirySummary: summary,
	}); err != nil {
		log.Printf("lead capture failed: %v", err)
		return map[string]any{"error": "failed to save lead"}, nil
	}

	if err := emit(StreamChunk{Text: "\n*(Lead captured)*\n"}); err != nil {
		return nil, err
	}
	return map[string]any{"result": "Lead saved successfully."}, nil
}

// sourceAccumulator de-duplicates grounding citations by URL across a turn.
// The first title seen for a URL wins.
type sourceAccumulator struct {
	seen    map[string]bool
	pending []domain.Source
}

// record stores citations not yet seen this turn.
func (a *sourceAccumulator) record(sources []domain.Source) {
	for _, src := range sources {
		if src.URL == "" || a.seen[src.URL] {
			continue
		}
		a.seen[src.URL] = true
		a.pending = append(a.pending, src)
	}
}

// drain returns and clears the citations recorded since the last emit.
func (a *sourceAccumulator) drain() []domain.Source {
	out := a.pending
	a.pending = nil
	return out
}

func emitFragment(frag ModelFragment, acc *sourceAccumulator, emit EmitFunc) error {
	acc.record(frag.Sources)
	if frag.Text == "" {
		return nil
	}
	return emit(StreamChunk{Text: frag.Text, Sources: acc.drain()})
}

func diagnosticChunk(err error) StreamChunk {
	log.Printf("generation failed: %v", err)
	if errors.Is(err, ErrProviderAuth) {
		return StreamChunk{Text: authFailureNotice, IsError: true}
	}
	return StreamChunk{Text: connectivityNotice, IsError: true}
}

func buildSystemInstruction(chatbot *domain.Chatbot, contextBlock string) string {
	persona := chatbot.SystemInstruction
	if persona == "" {
		persona = "You are a helpful AI assistant."
	}

	var b strings.Builder
	b.WriteString(persona)

	if chatbot.LeadCapture {
		b.WriteString("\n\nLEAD GENERATION DIRECTIVE:\n")
		b.WriteString("1. If a user seems interested in services or needs follow-up, politely ask for their Name and Email.\n")
		b.WriteString("2. Use the 'addLead' tool to save it immediately.")
	}

	b.WriteString("\n\nRELEVANT KNOWLEDGE CONTEXT:\n")
	if contextBlock != "" {
		b.WriteString(contextBlock)
	} else {
		b.WriteString("No specific context found. Rely on your general training and available tools.")
	}

	return b.String()
}

func buildFunctionDecls(chatbot *domain.Chatbot) []FunctionDecl {
	var decls []FunctionDecl

	if chatbot.LeadCapture {
		decls = append(decls, addLeadDecl())
	}

	for _, action := range chatbot.Actions {
		decls = append(decls, FunctionDecl{
			Name:        action.Name,
			Description: action.Description,
			Parameters:  action.Parameters,
		})
	}

	return decls
}

func addLeadDecl() FunctionDecl {
	return FunctionDecl{
		Name:        domain.ReservedToolAddLead,
		Description: "Save a new business lead or customer contact information when the user provides their name, email, phone, or specific inquiry details.",
		Parameters: domain.ParamSchema{
			Type: domain.SchemaTypeObject,
			Properties: map[string]domain.ParamSchema{
				"name":           {Type: domain.SchemaTypeString, Description: "The customer's name."},
				"email":          {Type: domain.SchemaTypeString, Description: "The customer's email address."},
				"phone":          {Type: domain.SchemaTypeString, Description: "The customer's phone number."},
				"inquirySummary": {Type: domain.SchemaTypeString, Description: "A brief summary of what the customer is asking about."},
			},
			Required: []string{"name", "inquirySummary"},
		},
	}
}
