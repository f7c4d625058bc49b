package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/vantor-labs/vantor/internal/domain"
)

const (
	webhookTimeout      = 15 * time.Second
	webhookMaxBodyBytes = 1 << 20
)

// WebhookExecutor performs HTTP calls for caller-defined webhook actions.
// Failures are converted into a structured error payload rather than raised,
// so the model can decide how to react.
type WebhookExecutor struct {
	client *http.Client
}

// NewWebhookExecutor creates a WebhookExecutor. client may be nil to use a
// default with a bounded timeout.
func NewWebhookExecutor(client *http.Client) *WebhookExecutor {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookExecutor{client: client}
}

// Execute serializes args as a query string (GET) or JSON body (POST), adds
// the action's configured headers, performs the call and returns the parsed
// JSON response. Any failure yields {"error": ...}.
func (e *WebhookExecutor) Execute(ctx context.Context, action domain.WebhookAction, args map[string]any) map[string]any {
	req, err := e.buildRequest(ctx, action, args)
	if err != nil {
		return webhookError(action.Name, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("webhook %s failed: %v", action.Name, err)
		return webhookError(action.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webhookMaxBodyBytes))
	if err != nil {
		return webhookError(action.Name, err)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return webhookError(action.Name, fmt.Errorf("response is not valid JSON (status %d)", resp.StatusCode))
	}

	if obj, ok := parsed.(map[string]any); ok {
		return obj
	}
	return map[string]any{"result": parsed}
}

func (e *WebhookExecutor) buildRequest(ctx context.Context, action domain.WebhookAction, args map[string]any) (*http.Request, error) {
	var req *http.Request
	var err error

	if action.Method == http.MethodGet {
		query := url.Values{}
		for key, value := range args {
			query.Set(key, fmt.Sprint(value))
		}

		target := action.URL
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		payload, marshalErr := json.Marshal(args)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.URL, bytes.NewReader(payload))
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range action.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func webhookError(name string, err error) map[string]any {
	return map[string]any{"error": fmt.Sprintf("action %s failed: %v", name, err)}
}
