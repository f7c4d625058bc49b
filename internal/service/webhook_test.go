package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantor-labs/vantor/internal/domain"
)

func TestWebhookExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	objectSchema := domain.ParamSchema{Type: domain.SchemaTypeObject}

	t.Run("GET serializes args as query parameters", func(t *testing.T) {
		var gotQuery map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			gotQuery = map[string]string{
				"city":  r.URL.Query().Get("city"),
				"units": r.URL.Query().Get("units"),
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"temp": 24})
		}))
		defer server.Close()

		executor := NewWebhookExecutor(server.Client())
		result := executor.Execute(ctx, domain.WebhookAction{
			Name:       "getWeather",
			URL:        server.URL,
			Method:     "GET",
			Parameters: objectSchema,
		}, map[string]any{"city": "Lisbon", "units": 10})

		assert.Equal(t, map[string]string{"city": "Lisbon", "units": "10"}, gotQuery)
		assert.Equal(t, float64(24), result["temp"])
	})

	t.Run("POST serializes args as a JSON body", func(t *testing.T) {
		var gotBody map[string]any
		var gotContentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			gotContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "created"})
		}))
		defer server.Close()

		executor := NewWebhookExecutor(server.Client())
		result := executor.Execute(ctx, domain.WebhookAction{
			Name:       "createTicket",
			URL:        server.URL,
			Method:     "POST",
			Parameters: objectSchema,
		}, map[string]any{"subject": "refund", "priority": float64(2)})

		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, map[string]any{"subject": "refund", "priority": float64(2)}, gotBody)
		assert.Equal(t, "created", result["status"])
	})

	t.Run("configured headers are attached to the request", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}))
		defer server.Close()

		executor := NewWebhookExecutor(server.Client())
		executor.Execute(ctx, domain.WebhookAction{
			Name:       "secured",
			URL:        server.URL,
			Method:     "POST",
			Headers:    map[string]string{"Authorization": "Bearer token-123"},
			Parameters: objectSchema,
		}, nil)

		assert.Equal(t, "Bearer token-123", gotAuth)
	})

	t.Run("non-object JSON responses are wrapped under result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[1, 2, 3]`))
		}))
		defer server.Close()

		executor := NewWebhookExecutor(server.Client())
		result := executor.Execute(ctx, domain.WebhookAction{
			Name:       "list",
			URL:        server.URL,
			Method:     "GET",
			Parameters: objectSchema,
		}, nil)

		require.Contains(t, result, "result")
		assert.Equal(t, []any{float64(1), float64(2), float64(3)}, result["result"])
	})

	t.Run("non-JSON responses become an error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>upstream error</html>"))
		}))
		defer server.Close()

		executor := NewWebhookExecutor(server.Client())
		result := executor.Execute(ctx, domain.WebhookAction{
			Name:       "flaky",
			URL:        server.URL,
			Method:     "GET",
			Parameters: objectSchema,
		}, nil)

		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "action flaky failed")
		assert.Contains(t, errMsg, "502")
	})

	t.Run("unreachable endpoints become an error payload", func(t *testing.T) {
		executor := NewWebhookExecutor(nil)
		result := executor.Execute(ctx, domain.WebhookAction{
			Name:       "dead",
			URL:        "http://127.0.0.1:1/nothing",
			Method:     "POST",
			Parameters: objectSchema,
		}, map[string]any{"a": 1})

		errMsg, ok := result["error"].(string)
		require.True(t, ok)
		assert.Contains(t, errMsg, "action dead failed")
	})
}
