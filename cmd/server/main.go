package main

import (
	"context"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/vidstitch/api/internal/auth"
	"github.com/vidstitch/api/internal/config"
	"github.com/vidstitch/api/internal/engine"
	"github.com/vidstitch/api/internal/handler"
	"github.com/vidstitch/api/internal/middleware"
	"github.com/vidstitch/api/internal/service"
	"github.com/vidstitch/api/internal/store"
	"github.com/vidstitch/api/internal/worker"
	ws "github.com/vidstitch/api/internal/websocket"
)

// @title          VidStitch API
// @version        1.0
// @description    Backend API for VidStitch — asynchronous media composition service.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
		redisAvailable = false
	}

	// Check the composition engine binary up front so a bad deployment
	// is visible in /health instead of on the first job.
	engineAvailable := true
	if _, err := exec.LookPath(cfg.FFmpeg.BinaryPath); err != nil {
		log.Printf("Warning: composition engine not found: %v", err)
		engineAvailable = false
	}

	// Ensure storage directories exist
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create storage dir %s: %v", dir, err)
		}
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub. Run starts after the services are wired
	// so the hub's snapshot hook is set by then.
	hub := ws.NewHub()

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)

	// Initialize services
	jobStore := store.NewMemoryStore()
	runner := engine.NewFFmpeg(&cfg.FFmpeg)
	uploadService := service.NewUploadService(cfg.Storage.UploadDir)
	composeWorker := worker.NewComposeWorker(runner, jobStore, hub)
	composeService := service.NewComposeService(jobStore, uploadService, composeWorker, cfg.Storage.OutputDir)
	retentionService := service.NewRetentionService(jobStore, &cfg.Retention, cfg.Storage.UploadDir, cfg.Storage.OutputDir)

	// New subscribers get the job's current state before live updates.
	hub.Snapshot = composeService.StatusFrame
	go hub.Run()

	// Start the retention sweep
	retentionCtx, stopRetention := context.WithCancel(ctx)
	defer stopRetention()
	go retentionService.Run(retentionCtx)

	// Initialize handlers
	composeHandler := handler.NewComposeHandler(composeService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.Storage.MaxUploadMB)

	// Initialize auth handler for ForwardAuth verification
	authHandler := handler.NewAuthHandler(authenticator)

	// Initialize auth middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		apiAuthMiddleware = middleware.NewAuthMiddleware(authenticator).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Storage.MaxUploadMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  redisAvailable,
				"engine": engineAvailable,
				"auth":   authenticator.Enabled(),
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Upload routes
	upload := api.Group("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour))
	upload.Post("/", uploadHandler.File)
	upload.Delete("/:fileId", uploadHandler.Delete)

	// Compose routes
	compose := api.Group("/compose")
	compose.Post("/", rateLimiter.ComposeLimit(cfg.RateLimit.ComposePerHour), composeHandler.Start)
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
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopRetention()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
