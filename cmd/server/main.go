package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mnemo/internal/embedding"
	"mnemo/internal/graph"
	"mnemo/internal/memory"
	"mnemo/internal/vector"
	"mnemo/pkg/config"
	apperrors "mnemo/pkg/errors"
	"mnemo/pkg/logger"
)

// memoryEngine is the surface the HTTP layer needs from the memory service
type memoryEngine interface {
	RegisterUser(ctx context.Context, username string) error
	Consolidate(ctx context.Context, username string, facts []memory.Fact) (*memory.Result, error)
	ConsolidateAsync(ctx context.Context, username string, facts []memory.Fact) *memory.ConsolidationTask
	Retrieve(ctx context.Context, username string, keywords []string, topK int, threshold float64) ([]string, error)
}

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting memory engine server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	graphRepo := graph.NewRepository(driver)
	if err := graphRepo.EnsureConstraints(ctx); err != nil {
		log.Warn("Failed to ensure graph constraints", zap.Error(err))
	}

	// Initialize Milvus vector store
	milvusClient, err := client.NewClient(ctx, client.Config{Address: cfg.MilvusAddress})
	if err != nil {
		log.Fatal("Failed to connect to Milvus", zap.Error(err))
	}
	defer milvusClient.Close()

	store := vector.NewStore(milvusClient, cfg.MilvusCollection, cfg.EmbeddingDimension)
	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatal("Failed to prepare vector collection", zap.Error(err))
	}

	// Embeddings, with a Redis cache in front when Redis is reachable
	var embedder embedding.Embedder = embedding.NewClient(
		cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension,
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("Invalid REDIS_URL, running without embedding cache", zap.Error(err))
		} else {
			rdb := redis.NewClient(opts)
			defer rdb.Close()
			embedder = embedding.NewCache(embedder, rdb, time.Duration(cfg.CacheTTLHours)*time.Hour)
		}
	}

	service := memory.NewService(graphRepo, store, embedder, cfg.DefaultTopK, cfg.SimilarityThreshold)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(service, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// setupRouter builds the HTTP surface over the memory engine
func setupRouter(service memoryEngine, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(requestID())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Register (or touch) a user
		api.PUT("/users/:username", func(c *gin.Context) {
			username := c.Param("username")
			if err := service.RegisterUser(c.Request.Context(), username); err != nil {
				log.Error("Failed to register user", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"username": username, "status": "registered"})
		})

		// Consolidate a batch of facts
		api.POST("/memory/:username/facts", func(c *gin.Context) {
			username := c.Param("username")

			var req struct {
				Facts []memory.Fact `json:"facts" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			if c.Query("async") == "true" {
				// Background work must outlive the request
				service.ConsolidateAsync(context.Background(), username, req.Facts)
				c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
				return
			}

			result, err := service.Consolidate(c.Request.Context(), username, req.Facts)
			if err != nil {
				if apperrors.IsUserCreateFailed(err) {
					c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to create user"})
					return
				}
				log.Error("Failed to consolidate facts", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to consolidate facts"})
				return
			}

			c.JSON(http.StatusOK, result)
		})

		// Retrieve ranked context sentences for a set of keywords
		api.GET("/memory/:username/context", func(c *gin.Context) {
			username := c.Param("username")

			keywords := splitKeywords(c.Query("keywords"))
			if len(keywords) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "keywords is required"})
				return
			}

			topK, _ := strconv.Atoi(c.Query("top_k"))
			threshold, _ := strconv.ParseFloat(c.Query("threshold"), 64)

			sentences, err := service.Retrieve(c.Request.Context(), username, keywords, topK, threshold)
			if err != nil {
				log.Error("Failed to retrieve context", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve context"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"username": username,
				"context":  sentences,
			})
		})
	}

	return router
}

// splitKeywords parses the comma-separated keywords query parameter
func splitKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}

// requestID attaches a request id to every response for correlation
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
