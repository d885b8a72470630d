package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tweedhat/api/internal/client"
	"github.com/tweedhat/api/internal/config"
	"github.com/tweedhat/api/internal/handler"
	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/scraper"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/internal/storage"
	"github.com/tweedhat/api/internal/worker"
	ws "github.com/tweedhat/api/internal/websocket"
)

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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize flat-file storage
	store, err := storage.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// External API clients
	speechClient := client.NewElevenLabsClient(cfg.Speech.BaseURL, cfg.Speech.ModelID, cfg.Speech.Timeout)
	visionClient := client.NewVisionClient(cfg.Vision.BaseURL, cfg.Vision.Model, cfg.Vision.Timeout)

	// Scraper strategy chain: primary site first, mirror as fallback
	profileScraper := scraper.NewChain(
		cfg.Scraper.Retries,
		cfg.Scraper.RetryDelay,
		scraper.NewPrimaryStrategy(cfg.Scraper.PrimaryURL, cfg.Scraper.UserAgent, cfg.Scraper.Timeout),
		scraper.NewMirrorStrategy(cfg.Scraper.MirrorURL, cfg.Scraper.UserAgent, cfg.Scraper.Timeout),
	)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize services
	authService := service.NewAuthService(store, authMiddleware)
	jobService := service.NewJobService(store, asynqClient)
	credentialService := service.NewCredentialService(store)
	voiceService := service.NewVoiceService(store, speechClient)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, validate)
	jobHandler := handler.NewJobHandler(jobService, validate)
	credentialHandler := handler.NewCredentialHandler(credentialService, validate)
	voiceHandler := handler.NewVoiceHandler(voiceService)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes
	app.Post("/auth/register", authHandler.Register)
	app.Post("/auth/login", authHandler.Login)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:jobId/status", jobHandler.Status)
	jobs.Get("/:jobId/download/:filename", jobHandler.Download)
	jobs.Delete("/:jobId", jobHandler.Delete)

	// Credential routes
	api.Put("/credentials", credentialHandler.Update)
	api.Get("/credentials", credentialHandler.Status)

	// Voice routes
	api.Get("/voices", rateLimiter.VoiceLimit(cfg.RateLimit.VoicesPerMin), voiceHandler.List)

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

	// Start Asynq worker server
	go startWorkerServer(cfg, store, profileScraper, visionClient, speechClient, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
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

func startWorkerServer(cfg *config.Config, store *storage.Store, sc scraper.Scraper, describer client.Describer, synthesizer client.Synthesizer, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				service.QueueNarrate: 10,
			},
		},
	)

	narrateWorker := worker.NewNarrateWorker(store, sc, describer, synthesizer, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeNarrate, narrateWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
