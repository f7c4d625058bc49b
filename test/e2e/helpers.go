//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"iter"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vantor-labs/vantor/internal/api/handlers"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/jobs"
	"github.com/vantor-labs/vantor/internal/repository"
	"github.com/vantor-labs/vantor/internal/server"
	"github.com/vantor-labs/vantor/internal/service"
	"github.com/vantor-labs/vantor/internal/storage"
	"github.com/vantor-labs/vantor/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Worker       *jobs.Worker
	WorkspaceID  string
	APIKeyToken  string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, an
// in-process server, and a fast-polling ingest worker. The model provider and
// embedder are deterministic in-process fakes, so no external APIs are hit.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-knowledge",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, worker := startServer(ctx, t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Worker:       worker,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a workspace and API key for testing
func (e *E2ETestEnv) Bootstrap() {
	wsResp, err := e.Post("/workspaces", map[string]string{"name": "E2E Test Workspace"}, "")
	if err != nil {
		e.T.Fatalf("failed to create workspace: %v", err)
	}

	var wsData struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(wsResp.Data, &wsData); err != nil {
		e.T.Fatalf("failed to parse workspace response: %v", err)
	}
	e.WorkspaceID = wsData.ID

	keyResp, err := e.Post("/apikeys", map[string]string{
		"workspace_id": e.WorkspaceID,
		"name":         "e2e-test-key",
	}, "")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}

	var keyData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(keyResp.Data, &keyData); err != nil {
		e.T.Fatalf("failed to parse key response: %v", err)
	}
	e.APIKeyToken = keyData.Token
}

// WaitForStatus polls a knowledge item until it reaches the given status.
func (e *E2ETestEnv) WaitForStatus(itemID, status string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/knowledge/"+itemID, e.APIKeyToken)
		if err == nil {
			var item struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(resp.Data, &item); err == nil && item.Status == status {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("knowledge item %s did not reach status %q within %v", itemID, status, timeout)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, authToken)
}

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PATCH", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// StreamChat posts a chat message and returns the raw SSE body.
func (e *E2ETestEnv) StreamChat(chatbotID, message string, history []map[string]string) (string, error) {
	body := map[string]interface{}{"message": message}
	if history != nil {
		body["history"] = history
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/chat/"+chatbotID+"/stream", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKeyToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, raw)
	}
	return string(raw), nil
}

// CollectStreamText joins the text fields of all chunk events in an SSE body.
func CollectStreamText(t *testing.T, sse string) string {
	var b strings.Builder
	for _, line := range strings.Split(sse, "\n") {
		if !strings.HasPrefix(line, "data: ") || line == "data: {}" {
			continue
		}
		var chunk struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			t.Fatalf("malformed SSE data line %q: %v", line, err)
		}
		b.WriteString(chunk.Text)
	}
	return b.String()
}

// startServer starts the HTTP server with the full service graph, backed by
// the deterministic fakes below.
func startServer(ctx context.Context, t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func(), *jobs.Worker) {
	workspaceRepo := repository.NewWorkspaceRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	chatbotRepo := repository.NewChatbotRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(workspaceRepo, apiKeyRepo, uuidGen)

	limiter := service.NewRateLimiter(1000, time.Minute)
	embedder := &hashEmbedder{}
	ragSvc := service.NewRagService(chunkRepo, embedder, limiter, service.RagConfig{})

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, ingestJobRepo, ragSvc, s3Client)
	chatbotSvc := service.NewChatbotService(chatbotRepo)
	leadSvc := service.NewLeadService(leadRepo)

	webhooks := service.NewWebhookExecutor(&http.Client{Timeout: 5 * time.Second})
	chatSvc := service.NewChatService(&scriptedChatProvider{}, ragSvc, limiter, webhooks, leadSvc)

	processor := jobs.NewIngestWorker(ingestJobRepo, knowledgeRepo, ragSvc)
	worker := jobs.NewWorker(processor, 100*time.Millisecond)
	go worker.Start(ctx)

	cfg := server.RouterConfig{
		AuthValidator:    authSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		ChatbotHandler:   handlers.NewChatbotHandler(chatbotSvc),
		LeadHandler:      handlers.NewLeadHandler(leadSvc),
		ChatHandler:      handlers.NewChatHandler(chatbotSvc, chatSvc),
		StatusHandler:    handlers.NewStatusHandler(limiter),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}, worker
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder produces deterministic bag-of-words embeddings: each word
// hashes into one of 32 buckets, and the vector is L2-normalized. Texts
// sharing words land close under cosine similarity.
type hashEmbedder struct{}

const hashEmbedderDim = 32

func (e *hashEmbedder) Model() string {
	return "e2e-hash-32"
}

func (e *hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashEmbedderDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?:;\"'")))
		vec[h.Sum32()%hashEmbedderDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// scriptedChatProvider is a deterministic stand-in for the model. It answers
// from the retrieved context block when one was injected, and issues an
// addLead call when lead capture is enabled and the message looks like
// contact details.
type scriptedChatProvider struct{}

func (p *scriptedChatProvider) StartChat(ctx context.Context, opts service.ChatOptions) (service.ChatSession, error) {
	return &scriptedChatSession{opts: opts}, nil
}

type scriptedChatSession struct {
	opts service.ChatOptions
}

func (s *scriptedChatSession) SendMessage(ctx context.Context, text string) iter.Seq2[service.ModelFragment, error] {
	return func(yield func(service.ModelFragment, error) bool) {
		if s.hasFunction(domain.ReservedToolAddLead) && strings.Contains(text, "@") {
			yield(service.ModelFragment{Call: &service.ToolCall{
				ID:   "call-1",
				Name: domain.ReservedToolAddLead,
				Args: map[string]any{
					"name":           "E2E Customer",
					"email":          extractEmail(text),
					"inquirySummary": text,
				},
			}}, nil)
			return
		}

		if strings.Contains(s.opts.SystemInstruction, "No specific context found") {
			yield(service.ModelFragment{Text: "I don't have that information."}, nil)
			return
		}

		contextBlock := contextFromInstruction(s.opts.SystemInstruction)
		if !yield(service.ModelFragment{Text: "Based on our records: "}, nil) {
			return
		}
		yield(service.ModelFragment{Text: contextBlock}, nil)
	}
}

func (s *scriptedChatSession) SendToolResult(ctx context.Context, call service.ToolCall, result map[string]any) iter.Seq2[service.ModelFragment, error] {
	return func(yield func(service.ModelFragment, error) bool) {
		if errMsg, ok := result["error"].(string); ok {
			yield(service.ModelFragment{Text: "Something went wrong: " + errMsg}, nil)
			return
		}
		yield(service.ModelFragment{Text: "Thanks! Our team will reach out shortly."}, nil)
	}
}

func (s *scriptedChatSession) hasFunction(name string) bool {
	for _, fn := range s.opts.Functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

func contextFromInstruction(instruction string) string {
	const marker = "RELEVANT KNOWLEDGE CONTEXT:\n"
	idx := strings.Index(instruction, marker)
	if idx < 0 {
		return ""
	}
	return instruction[idx+len(marker):]
}

func extractEmail(text string) string {
	for _, word := range strings.Fields(text) {
		if strings.Contains(word, "@") {
			return strings.Trim(word, ".,!?")
		}
	}
	return ""
}
