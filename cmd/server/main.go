// Command server runs the public-facing sales-agent platform API: agent
// and product CRUD, training-data ingestion, the embeddable chat endpoint,
// order tracking, analytics, the conversational agent builder, and webhook
// subscriptions, all behind one gin router. Grounded on the teacher's
// cmd/registry/main.go composition shape — load config, wire repositories
// then services then handlers, mount the router, serve, wait on a signal,
// shut down — with NAP's federation/DNS/identity-CA machinery replaced by
// this domain's store/vectorindex/llm/orchestrator stack.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/analytics"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/builder"
	"github.com/salesagentco/platform/internal/config"
	"github.com/salesagentco/platform/internal/email"
	"github.com/salesagentco/platform/internal/health"
	"github.com/salesagentco/platform/internal/ingest"
	"github.com/salesagentco/platform/internal/llm"
	"github.com/salesagentco/platform/internal/orchestrator"
	"github.com/salesagentco/platform/internal/orchestrator/sessionlock"
	"github.com/salesagentco/platform/internal/registry/handler"
	"github.com/salesagentco/platform/internal/store"
	"github.com/salesagentco/platform/internal/vectorindex"
	"github.com/salesagentco/platform/internal/vectorindex/httpindex"
	"github.com/salesagentco/platform/internal/vectorindex/memoryindex"
	"github.com/salesagentco/platform/internal/webhooks"
)

const (
	ingestWorkers      = 4
	sessionLockIdleTTL = 10 * time.Minute
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.StoreURL, cfg.StoreKey)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer st.Close()

	var index vectorindex.Client
	if cfg.VectorURL != "" {
		index = httpindex.New(cfg.VectorURL, cfg.VectorAPIKey, logger)
	} else {
		logger.Warn("VECTOR_URL not set, using in-memory vector index (not safe for multi-process deployments)")
		index = memoryindex.New()
	}
	index = vectorindex.WithEnsureOnce(index)

	llmClient := llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMChatModel, cfg.LLMMaxTokens, cfg.LLMTemperature)

	hasVectors := func(ctx context.Context, agentID string) (bool, error) {
		id, err := uuid.Parse(agentID)
		if err != nil {
			return false, err
		}
		return st.Agents.HasVectors(ctx, id)
	}
	orchCfg := orchestrator.Config{
		HistoryWindow:        cfg.MaxConversationHistory,
		LeadQualifyThreshold: cfg.LeadQualifyMinMessages,
		RetrievalTopK:        cfg.RetrievalTopK,
		RetrievalScoreFloor:  cfg.RetrievalScoreFloor,
	}
	orch := orchestrator.New(llmClient, index, logger, orchCfg, hasVectors)

	pipeline := ingest.New(st, llmClient, index, logger, ingestWorkers)
	defer pipeline.Shutdown()

	builderSvc := builder.New(st.Agents, st.Products, st.TrainingData, pipeline, logger)

	analyticsSvc := analytics.New(st.Pool)

	locker := sessionlock.New(sessionLockIdleTTL)

	verifier, err := authn.NewVerifier(authn.Config{
		CredentialsPath: cfg.AuthProviderCredentialsPath,
		DevMode:         cfg.Environment == "development",
	})
	if err != nil {
		return fmt.Errorf("build auth verifier: %w", err)
	}

	webhookRepo := webhooks.NewRepository(st.Pool)
	webhookSvc := webhooks.NewService(webhookRepo, logger)
	webhookSvc.SetMetricsRecorder(handler.RecordWebhookDelivery)
	webhookHandler := webhooks.NewHandler(webhookSvc, logger)

	var mailer email.EmailSender
	if cfg.SMTPHost != "" {
		mailer = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFromAddress)
	} else {
		mailer = email.NewNoopSender(logger)
	}

	notify := func(ctx context.Context, eventType, ownerID string, payload map[string]string) {
		webhookSvc.Dispatch(ctx, ownerID, eventType, payload)
		if eventType == "lead.qualified" && payload["email"] != "" {
			subject := "New lead qualified"
			body := fmt.Sprintf("Agent %s qualified a lead: %s", payload["agent_id"], payload["email"])
			if err := mailer.Send(ctx, payload["email"], subject, body); err != nil {
				logger.Warn("lead notification email failed", zap.Error(err))
			}
		}
	}
	pipeline.SetNotify(notify)

	healthChecker := health.New([]health.Probe{
		{Name: "store", Run: func(ctx context.Context) error { return st.Pool.Ping(ctx) }},
		{Name: "vectorindex", Run: index.HealthCheck},
		{Name: "llm", Run: func(ctx context.Context) error {
			_, err := llmClient.Embed(ctx, "healthcheck")
			return err
		}},
	}, health.Config{}, logger)
	healthChecker.SetWebhookDispatch(func(ctx context.Context, eventType string, payload map[string]string) {
		logger.Warn("dependency health degraded", zap.String("dependency", payload["dependency"]), zap.String("error", payload["error"]))
	})
	healthChecker.SetMetricsRecord(handler.RecordHealthCheck)

	agentHandler := handler.NewAgentHandler(st, index, logger)
	productHandler := handler.NewProductHandler(st, logger)
	trainingHandler := handler.NewTrainingHandler(st, pipeline, index, logger)
	orderHandler := handler.NewOrderHandler(st, logger)
	orderHandler.SetNotify(notify)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, logger)
	builderHandler := handler.NewBuilderHandler(builderSvc, logger)
	chatHandler := handler.NewChatHandler(st, orch, locker, logger)
	chatHandler.SetNotify(notify)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	corsConfig := cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Persistence-Degraded"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 10<<20)
		c.Next()
	})

	if cfg.RateLimitRPS > 0 {
		router.Use(handler.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))
	router.Use(requestDeadline(cfg.RequestTimeout()))

	router.GET("/healthz", func(c *gin.Context) {
		snapshot := healthChecker.Snapshot()
		status := http.StatusOK
		if !healthChecker.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"dependencies": snapshot})
	})
	router.GET("/metrics", handler.MetricsHandler())

	api := router.Group("/api")
	agentHandler.Register(api, verifier)
	productHandler.Register(api, verifier)
	trainingHandler.Register(api, verifier)
	orderHandler.Register(api, verifier)
	analyticsHandler.Register(api, verifier)
	builderHandler.Register(api, verifier)
	chatHandler.Register(api, verifier)
	webhookHandler.Register(api, verifier)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	healthQuit := make(chan os.Signal, 1)
	go healthChecker.Start(healthQuit)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server...")
	close(healthQuit)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestDeadline bounds every request's context to timeout, so a slow
// downstream (store, vector index, LLM) can't hold a handler open forever.
// The orchestrator's turnBudget on each chat turn is shorter and takes effect first; this
// is the outer backstop for every other route.
func requestDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
