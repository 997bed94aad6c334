package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"voicedesk-backend/internal/broadcast"
	intDatabase "voicedesk-backend/internal/database"
	callHandler "voicedesk-backend/internal/handler/http/call"
	telephonyHandler "voicedesk-backend/internal/handler/http/telephony"
	wsHandler "voicedesk-backend/internal/handler/ws"
	"voicedesk-backend/internal/middleware"
	"voicedesk-backend/internal/repository/cassandra"
	"voicedesk-backend/internal/repository/cockroach"
	redisRepo "voicedesk-backend/internal/repository/redis"
	"voicedesk-backend/internal/service/lifecycle"
	"voicedesk-backend/internal/service/pipeline"
	"voicedesk-backend/internal/service/recording"
	"voicedesk-backend/internal/service/suggestion"
	"voicedesk-backend/internal/service/transcript"
	"voicedesk-backend/internal/speaker"
	"voicedesk-backend/internal/storage"
	"voicedesk-backend/internal/trigger"
	pkgDatabase "voicedesk-backend/pkg/database"
	"voicedesk-backend/pkg/env"
	"voicedesk-backend/pkg/jwt"
	"voicedesk-backend/pkg/llm"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
	"voicedesk-backend/pkg/vectorstore"
)

func main() {
	// 1. Logging
	logger.InitDefault()
	defer logger.Sync()

	// 2. JWT Manager for the dashboard API
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewManager(jwtSecret, 15*time.Minute)

	// 3. Connect to Cassandra (utterance log)
	cassandraConfig := &intDatabase.CassandraConfig{
		Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "voicedesk_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	}
	cassandraDB, err := intDatabase.NewCassandraDB(cassandraConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Cassandra: %v", err)
	}
	defer cassandraDB.Close()

	log.Println("✅ Connected to Cassandra")

	// 4. Connect to Redis with degraded mode support (pub/sub + event dedup)
	redisConfig := &intDatabase.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}
	redisDB, err := intDatabase.NewRedisDB(redisConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()

	log.Println("✅ Connected to Redis")

	redisDB.StartHealthCheck(context.Background(), 10*time.Second)

	// 5. Connect to CockroachDB (call records)
	cockroachConfig := &pkgDatabase.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "voicedesk_db"),
		SSLMode:  env.GetString("COCKROACH_SSLMODE", "disable"),
	}
	cockroachDB, err := pkgDatabase.NewCockroachDB(context.Background(), cockroachConfig)
	if err != nil {
		log.Fatalf("Failed to connect to CockroachDB: %v", err)
	}
	defer cockroachDB.Close()

	log.Println("✅ Connected to CockroachDB")

	// 6. Object store for call recordings
	objectStore, err := storage.NewObjectStore(&storage.Config{
		Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", ""),
		SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", ""),
		Bucket:    env.GetString("MINIO_BUCKET", "voicedesk-recordings"),
		UseSSL:    env.GetBool("MINIO_USE_SSL", false),
	})
	if err != nil {
		log.Fatalf("Failed to create object store client: %v", err)
	}
	if err := objectStore.EnsureBucket(context.Background()); err != nil {
		log.Printf("⚠️ Could not ensure recording bucket: %v", err)
	}

	// 7. LLM and knowledge retrieval clients
	llmClient := llm.NewClient(
		env.GetString("LLM_BASE_URL", "https://api.openai.com"),
		env.GetStringFromFile("LLM_API_KEY", ""),
		env.GetString("LLM_MODEL", "gpt-4o-mini"),
		env.GetString("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
	)
	knowledgeIndex := vectorstore.NewClient(
		env.GetString("VECTORSTORE_BASE_URL", "http://localhost:6333"),
		env.GetStringFromFile("VECTORSTORE_API_KEY", ""),
	)

	// 8. Metrics
	appMetrics := metrics.NewMetrics("call-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 9. Repositories
	callRepo := cockroach.NewCallRepository(cockroachDB.Pool)
	utteranceRepo := cassandra.NewUtteranceRepository(cassandraDB)
	deliveryRepo := redisRepo.NewEventRepository(redisDB)

	// 10. Event hub and broadcaster. The hub is the local transport; Redis
	// fans out to other instances; NATS is optional for external consumers.
	eventHub := wsHandler.NewEventHub(redisDB, appMetrics)

	transports := []broadcast.Transport{
		eventHub,
		broadcast.NewRedisTransport(redisDB),
	}
	if natsURL := env.GetString("NATS_URL", ""); natsURL != "" {
		natsTransport, err := broadcast.NewNATSTransport(natsURL)
		if err != nil {
			log.Printf("⚠️ NATS unavailable, continuing without it: %v", err)
		} else {
			transports = append(transports, natsTransport)
			log.Println("✅ Connected to NATS")
		}
	}
	broadcaster := broadcast.NewBroadcaster(appMetrics, transports...)

	// 11. Services
	transcriptSvc := transcript.NewService(utteranceRepo, broadcaster, appMetrics)
	lifecycleSvc := lifecycle.NewService(callRepo, broadcaster, transcriptSvc, appMetrics)
	recordingSvc := recording.NewService(callRepo, objectStore, broadcaster, deliveryRepo, nil)

	classifier := speaker.NewLexicalClassifier(&speaker.Config{
		ConfidenceThreshold: env.GetFloat("SPEAKER_CONFIDENCE_THRESHOLD", 0.8),
	})

	detectorConfig := trigger.DefaultConfig()
	detectorConfig.WindowSize = env.GetInt("TRIGGER_WINDOW_SIZE", detectorConfig.WindowSize)
	detectorConfig.MinAccumulation = env.GetInt("TRIGGER_MIN_ACCUMULATION", detectorConfig.MinAccumulation)
	detector := trigger.NewDetector(detectorConfig)

	generatorConfig := suggestion.DefaultConfig()
	generatorConfig.Timeout = env.GetDuration("SUGGESTION_TIMEOUT", generatorConfig.Timeout)
	generator := suggestion.NewGenerator(llmClient, knowledgeIndex, generatorConfig, appMetrics)

	pipelineSvc := pipeline.NewService(
		lifecycleSvc,
		classifier,
		transcriptSvc,
		detector,
		generator,
		broadcaster,
		detectorConfig.WindowSize,
		appMetrics,
	)

	// 12. Handlers
	webhookBaseURL := env.GetString("WEBHOOK_BASE_URL", "")
	telephonyHdlr := telephonyHandler.NewHandler(pipelineSvc, lifecycleSvc, recordingSvc, appMetrics, webhookBaseURL)
	callHdlr := callHandler.NewHandler(lifecycleSvc, transcriptSvc, recordingSvc)

	// 13. Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())
	router.Use(middleware.NewTimeoutMiddleware(nil).Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "call-service",
			"time":    time.Now().UTC(),
		})
	})

	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	// Telephony webhooks, authenticated by provider signature at the edge
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/voice", telephonyHdlr.Voice)
		webhooks.POST("/speech", telephonyHdlr.Speech)
		webhooks.POST("/status", telephonyHdlr.Status)
		webhooks.POST("/recording", telephonyHdlr.Recording)
	}

	// Dashboard API
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		v1.GET("/calls", callHdlr.List)
		v1.GET("/calls/:id", callHdlr.Get)
		v1.GET("/calls/:id/transcript", callHdlr.GetTranscript)
		v1.GET("/calls/:id/recording-url", callHdlr.GetRecordingURL)

		// Live event feed
		v1.GET("/ws/events", eventHub.ServeWS)
	}

	// 14. Start server
	port := env.GetString("PORT", "8080")
	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Call Service starting on port %s\n", port)
		log.Println("📡 WebSocket endpoint: /v1/ws/events")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 15. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	broadcaster.Close()

	log.Println("Server exited")
}
