//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/andino-labs/policychat/internal/api/handlers"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/openai"
	"github.com/andino-labs/policychat/internal/pdfextract"
	"github.com/andino-labs/policychat/internal/repository"
	"github.com/andino-labs/policychat/internal/server"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/andino-labs/policychat/internal/storage"
	"github.com/andino-labs/policychat/internal/testutil"
	"github.com/andino-labs/policychat/internal/tokencache"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Redis        *miniredis.Miniredis
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	UserEmail    string
	AuthToken    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment: real Postgres and S3
// containers, an in-process Redis, and the HTTP server wired with a stub
// model so no OpenAI account is required.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
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

	serverURL, serverCloser := startServer(t, pool, s3Client, mr.Addr(), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Redis:        mr,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.Redis != nil {
		e.Redis.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Login obtains a session token for the given work email
func (e *E2ETestEnv) Login(workEmail string) {
	resp, err := e.Post("/login", map[string]string{"work_email": workEmail}, "")
	if err != nil {
		e.T.Fatalf("failed to log in: %v", err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		e.T.Fatalf("failed to parse login response: %v", err)
	}

	e.UserEmail = workEmail
	e.AuthToken = data.Token
}

// LoginAs obtains a session token for another user without switching the
// environment's active identity
func (e *E2ETestEnv) LoginAs(workEmail string) string {
	resp, err := e.Post("/login", map[string]string{"work_email": workEmail}, "")
	if err != nil {
		e.T.Fatalf("failed to log in as %s: %v", workEmail, err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		e.T.Fatalf("failed to parse login response: %v", err)
	}
	return data.Token
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

	return parseResponse(resp)
}

// UploadDocument uploads a document to a knowledge base as multipart form
// data. Extra fields (summary, lines_of_service, profiles) ride along as
// form values.
func (e *E2ETestEnv) UploadDocument(method, path string, fields map[string]string, fileName string, fileContent []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}

	if fileContent != nil {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(fileContent); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.AuthToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

// Chat posts one chat turn and returns the raw SSE body
func (e *E2ETestEnv) Chat(sessionID, content string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"messages": []map[string]string{
			{"role": "user", "content": content},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.AuthToken)
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

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func parseResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
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

// startServer starts the HTTP server with all handlers
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, redisAddr string, port int) (string, func()) {
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	tokenCache := tokencache.NewCache(redisClient, time.Hour)

	kbRepo := repository.NewKnowledgeBaseRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	embeddingRepo := repository.NewDocumentEmbeddingRepository(pool)
	chatRepo := repository.NewChatSessionRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)

	// stubAI stands in for OpenAI so E2E runs offline; the real client has
	// its own integration tests.
	model := &stubAI{answer: []string{"According to ", "the policy, ", "yes."}}

	indexerSvc := service.NewIndexerService(embeddingRepo, docRepo, jobRepo, model, 0)
	retrievalSvc := service.NewRetrievalService(embeddingRepo, docRepo, model, service.RetrievalConfig{}, nil)

	authSvc := service.NewAuthService(tokenCache)
	docSvc := service.NewDocumentService(docRepo, kbRepo, s3Client, &plainTextExtractor{}, indexerSvc, model)
	kbSvc := service.NewKnowledgeBaseService(kbRepo, docSvc)
	chatSvc := service.NewChatService(chatRepo, retrievalSvc, model)

	cfg := server.RouterConfig{
		AuthValidator:        authSvc,
		ChatRateLimiter:      middleware.NewRateLimiter(100, 100),
		AuthHandler:          handlers.NewAuthHandler(authSvc),
		ChatHandler:          handlers.NewChatHandler(chatSvc),
		DocumentHandler:      handlers.NewDocumentHandler(docSvc),
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(kbSvc),
		UtilitiesHandler:     handlers.NewUtilitiesHandler(pdfextract.NewExtractor()),
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
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		redisClient.Close()
	}
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

// stubAI implements the embedding and chat model interfaces with canned
// output. Embeddings are a constant unit vector, so every indexed chunk
// scores 1.0 against every query and retrieval always has material to rank.
type stubAI struct {
	answer []string
}

func (s *stubAI) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, domain.EmbeddingDimensions)
	vector[0] = 1
	return vector, nil
}

func (s *stubAI) StreamChatCompletion(ctx context.Context, messages []openai.ChatMessage) (openai.ChatStream, error) {
	return &scriptedStream{chunks: s.answer}, nil
}

func (s *stubAI) ChatCompletion(ctx context.Context, messages []openai.ChatMessage) (string, error) {
	return "Covers the company policy in scope.", nil
}

type scriptedStream struct {
	chunks []string
	pos    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

// plainTextExtractor treats the uploaded bytes as the document text. The
// real PDF extractor is unit-tested separately; E2E feeds text files
// through the indexing pipeline.
type plainTextExtractor struct{}

func (e *plainTextExtractor) ExtractText(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", domain.ErrDocumentNotText
	}
	return text, nil
}
