// Package gemini adapts the Google Gen AI SDK to the chat and embedding
// interfaces consumed by the service layer.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"google.golang.org/genai"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/service"
)

// Default embedding settings. The dimensionality is stored with every chunk,
// so changing it only affects newly ingested content.
const (
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultEmbeddingDim   = 768
)

// defaultTemperature matches the conversational tuning of the chat surface.
const defaultTemperature = float32(0.7)

// Config holds Gemini client configuration
type Config struct {
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int32
}

// Client wraps the Gen AI SDK, implementing service.EmbeddingClient and
// service.ChatProvider.
type Client struct {
	genai          *genai.Client
	embeddingModel string
	embeddingDim   int32
}

// NewClient creates a new Gemini client instance
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = DefaultEmbeddingDim
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		genai:          client,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
	}, nil
}

// Model identifies the embedding model used by this client.
func (c *Client) Model() string {
	return c.embeddingModel
}

// GenerateEmbedding generates an embedding vector for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	dim := c.embeddingDim
	resp, err := c.genai.Models.EmbedContent(ctx, c.embeddingModel,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

// StartChat opens a streaming conversation with the configured model.
func (c *Client) StartChat(ctx context.Context, opts service.ChatOptions) (service.ChatSession, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(defaultTemperature),
	}
	if opts.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemInstruction, genai.RoleUser)
	}
	config.Tools = buildTools(opts)

	chat, err := c.genai.Chats.Create(ctx, opts.Model, config, historyContents(opts.History))
	if err != nil {
		return nil, classifyErr(err)
	}

	return &chatSession{chat: chat}, nil
}

// chatSession adapts *genai.Chat streams to service fragments.
type chatSession struct {
	chat *genai.Chat
}

func (s *chatSession) SendMessage(ctx context.Context, text string) iter.Seq2[service.ModelFragment, error] {
	return s.stream(ctx, genai.Part{Text: text})
}

func (s *chatSession) SendToolResult(ctx context.Context, call service.ToolCall, result map[string]any) iter.Seq2[service.ModelFragment, error] {
	return s.stream(ctx, genai.Part{
		FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: result,
		},
	})
}

func (s *chatSession) stream(ctx context.Context, part genai.Part) iter.Seq2[service.ModelFragment, error] {
	return func(yield func(service.ModelFragment, error) bool) {
		for resp, err := range s.chat.SendMessageStream(ctx, part) {
			if err != nil {
				yield(service.ModelFragment{}, classifyErr(err))
				return
			}

			frag := toFragment(resp)
			if !yield(frag, nil) {
				return
			}
			// The orchestrator handles one call per turn; stop relaying
			// once the model requested a tool.
			if frag.Call != nil {
				return
			}
		}
	}
}

// toFragment flattens one streamed response into text, citations and an
// optional function call.
func toFragment(resp *genai.GenerateContentResponse) service.ModelFragment {
	frag := service.ModelFragment{Text: resp.Text()}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		frag.Call = &service.ToolCall{
			ID:   calls[0].ID,
			Name: calls[0].Name,
			Args: calls[0].Args,
		}
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			frag.Sources = append(frag.Sources, domain.Source{
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			})
		}
	}

	return frag
}

func historyContents(history []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == domain.TurnRoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(role)))
	}
	return contents
}

// buildTools maps declared functions and the web search flag to provider
// tools. The Gemini API rejects requests mixing GoogleSearch with function
// declarations, so function tools take precedence.
func buildTools(opts service.ChatOptions) []*genai.Tool {
	if len(opts.Functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(opts.Functions))
		for _, fn := range opts.Functions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  toSchema(fn.Parameters),
			})
		}
		return []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if opts.WebSearch {
		return []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	return nil
}

func toSchema(s domain.ParamSchema) *genai.Schema {
	out := &genai.Schema{
		Type:        schemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toSchema(*s.Items)
	}

	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case domain.SchemaTypeObject:
		return genai.TypeObject
	case domain.SchemaTypeString:
		return genai.TypeString
	case domain.SchemaTypeNumber:
		return genai.TypeNumber
	case domain.SchemaTypeInteger:
		return genai.TypeInteger
	case domain.SchemaTypeBoolean:
		return genai.TypeBoolean
	case domain.SchemaTypeArray:
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

// classifyErr tags authentication failures so the orchestrator can surface
// the right diagnostic.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %v", service.ErrProviderAuth, err)
		}
	}
	return err
}
