package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/vidstitch/api/internal/auth"
	"github.com/vidstitch/api/internal/engine"
	"github.com/vidstitch/api/internal/handler"
	"github.com/vidstitch/api/internal/middleware"
	"github.com/vidstitch/api/internal/service"
	"github.com/vidstitch/api/internal/store"
	ws "github.com/vidstitch/api/internal/websocket"
	"github.com/vidstitch/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app       *fiber.App
	jobStore  store.JobStore
	uploadDir string
	outputDir string
}

// stubRunner stands in for the engine: it writes a fake output file and
// completes immediately, so full pipelines finish in milliseconds.
type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, inputA, inputB string, spec *engine.GraphSpec, outputPath string) <-chan engine.Event {
	events := make(chan engine.Event, 4)
	defer close(events)

	if err := os.WriteFile(outputPath, []byte("stub output"), 0o644); err != nil {
		events <- engine.Event{Kind: engine.EventFailed, Detail: "engine start: " + err.Error()}
		return events
	}

	events <- engine.Event{Kind: engine.EventStarted, Command: "stub"}
	events <- engine.Event{Kind: engine.EventProgress, Percent: 50}
	events <- engine.Event{Kind: engine.EventCompleted}
	return events
}

// blockedRunner never reaches a terminal event until released, keeping
// jobs in the processing state for as long as a test needs.
type blockedRunner struct {
	release chan struct{}
}

func newBlockedRunner(t *testing.T) *blockedRunner {
	r := &blockedRunner{release: make(chan struct{})}
	t.Cleanup(func() { close(r.release) })
	return r
}

func (r *blockedRunner) Run(ctx context.Context, inputA, inputB string, spec *engine.GraphSpec, outputPath string) <-chan engine.Event {
	events := make(chan engine.Event, 4)
	events <- engine.Event{Kind: engine.EventStarted, Command: "stub"}
	go func() {
		<-r.release
		close(events)
	}()
	return events
}

// failingRunner fails every run with a fixed detail.
type failingRunner struct {
	detail string
}

func (r *failingRunner) Run(ctx context.Context, inputA, inputB string, spec *engine.GraphSpec, outputPath string) <-chan engine.Event {
	events := make(chan engine.Event, 4)
	defer close(events)

	events <- engine.Event{Kind: engine.EventStarted, Command: "stub"}
	events <- engine.Event{Kind: engine.EventFailed, Detail: r.detail}
	return events
}

// setupApp creates a Fiber app identical to main.go but with the engine
// replaced by a stub that completes instantly.
func setupApp(t *testing.T) *testApp {
	return setupAppWith(t, stubRunner{})
}

// setupAppWith builds the app around a caller-chosen engine runner.
func setupAppWith(t *testing.T, runner engine.Runner) *testApp {
	t.Helper()

	uploadDir := t.TempDir()
	outputDir := t.TempDir()

	// Redis (localhost — rate limiting fails open when unavailable)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	validate := validator.New()

	// WebSocket hub
	hub := ws.NewHub()

	// Services
	jobStore := store.NewMemoryStore()
	uploadService := service.NewUploadService(uploadDir)
	composeWorker := worker.NewComposeWorker(runner, jobStore, hub)
	composeService := service.NewComposeService(jobStore, uploadService, composeWorker, outputDir)
	hub.Snapshot = composeService.StatusFrame
	go hub.Run()

	// Handlers
	composeHandler := handler.NewComposeHandler(composeService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, 64)

	// Auth — legacy HMAC only
	authenticator := auth.NewAuthenticator(nil, testJWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)
	authMiddleware := middleware.NewAuthMiddleware(authenticator)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  false,
				"engine": false,
				"auth":   true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/", uploadHandler.File)
	upload.Delete("/:fileId", uploadHandler.Delete)

	compose := api.Group("/compose")
	compose.Post("/", rateLimiter.ComposeLimit(10000), composeHandler.Start)
	compose.Get("/status/:jobId", composeHandler.Status)
	compose.Get("/download/:jobId", composeHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	return &testApp{
		app:       app,
		jobStore:  jobStore,
		uploadDir: uploadDir,
		outputDir: outputDir,
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "vidstitch-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// uploadFile posts a multipart file with an explicit content type.
func uploadFile(t *testing.T, app *fiber.App, filename, contentType, content string) *http.Response {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart field: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write multipart content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to finish multipart body: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, "/api/upload", buf)
	if err != nil {
		t.Fatalf("failed to build upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	return resp
}

// uploadInput uploads a fake video and returns its id.
func uploadInput(t *testing.T, app *fiber.App, filename string) string {
	t.Helper()

	resp := uploadFile(t, app, filename, "video/mp4", "fake video content")
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	id, ok := result["id"].(string)
	if !ok || id == "" {
		t.Fatal("expected id in upload response")
	}
	return id
}

// waitForStatus polls the status endpoint until the job reaches the
// wanted state and returns the final snapshot.
func waitForStatus(t *testing.T, app *fiber.App, jobID, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	last := ""
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, app, http.MethodGet, "/api/compose/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)

		result := parseJSON(t, resp)
		status, _ := result["status"].(string)
		if status == want {
			return result
		}
		if status != "processing" && status != want {
			t.Fatalf("job %s reached %q while waiting for %q (error: %v)", jobID, status, want, result["error"])
		}
		last = status

		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %q (last status %q)", jobID, want, last)
	return nil
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// errorCode extracts the error envelope code from a response map.
func errorCode(t *testing.T, result map[string]interface{}) string {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
