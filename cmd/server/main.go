package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/pawmates/internal/api"
	"github.com/lalith-99/pawmates/internal/cache"
	"github.com/lalith-99/pawmates/internal/config"
	"github.com/lalith-99/pawmates/internal/db"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/middleware"
	"github.com/lalith-99/pawmates/internal/observ"
	"github.com/lalith-99/pawmates/internal/realtime"
	"github.com/lalith-99/pawmates/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres
	//
	// Why context.Background() here?
	//   - At startup, there's no parent request or deadline.
	//     Background() is the root context — it never cancels.
	//   - Once the server is running, each HTTP request gets its
	//     own context with a deadline. But startup is "take as long
	//     as you need to connect."
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// 4. Connect to Redis (feed cache)
	//
	// Redis is an accelerator, not a dependency: if it's down, the
	// feed runs uncached against Postgres and the server still starts.
	// ---------------------------------------------------------------
	var feedCache matching.FeedCache
	if rc, err := cache.New(context.Background(), cfg.RedisURL, logger); err != nil {
		logger.Warn("redis unavailable, candidate feed runs uncached", zap.Error(err))
	} else {
		feedCache = rc
		defer rc.Close()
	}

	// ---------------------------------------------------------------
	// 5. Create repositories
	//
	// Each store gets the same pool; the pool is goroutine-safe.
	// ---------------------------------------------------------------
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	petRepo := postgres.NewPetStore(pool)
	matchRepo := postgres.NewMatchStore(pool)
	chatRepo := postgres.NewChatStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	// ---------------------------------------------------------------
	// 6. Realtime layer
	//
	// The presence registry and hub are constructed here and injected
	// — no package-level singletons. They live exactly as long as the
	// process; presence state is rebuilt from scratch on restart.
	// ---------------------------------------------------------------
	presence := realtime.NewPresence()
	hub := realtime.NewHub(presence, chatRepo, logger)

	// ---------------------------------------------------------------
	// 7. Matching service
	//
	// The hub doubles as the notifier: match_created / chat_removed go
	// point-to-point through the presence registry.
	// ---------------------------------------------------------------
	matchSvc := matching.NewService(petRepo, matchRepo, chatRepo, userRepo, hub, feedCache, logger)

	// ---------------------------------------------------------------
	// 8. HTTP server
	// ---------------------------------------------------------------
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	logger.Info("starting PawMates",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	petHandler := api.NewPetHandler(petRepo, matchSvc, cfg.IsDevelopment(), logger)
	matchHandler := api.NewMatchHandler(matchSvc, cfg.MaxDistanceKM, cfg.IsDevelopment(), logger)
	chatHandler := api.NewChatHandler(chatRepo, messageRepo, matchSvc, cfg.IsDevelopment(), logger)

	// Health check is PUBLIC — load balancers hit this to check if the
	// server is alive. If it required auth, the LB couldn't health-check us.
	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	// The websocket endpoint upgrades without a bearer token: the
	// connection authenticates itself at the protocol level (the
	// `authenticate` frame) before it becomes deliverable.
	srv.GET("/v1/ws", realtime.ServeWS(hub, logger))

	// All other /v1/* routes require a valid JWT. The middleware runs
	// BEFORE any handler in this group.
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users/me", userHandler.GetMe)
	v1.PUT("/users/me/location", userHandler.UpdateLocation)
	v1.PUT("/users/me/push-token", userHandler.UpdatePushToken)

	v1.POST("/pets", petHandler.Create)
	v1.GET("/pets", petHandler.List)
	v1.GET("/pets/:id", petHandler.Get)
	v1.PUT("/pets/:id", petHandler.Update)
	v1.DELETE("/pets/:id", petHandler.Delete)

	v1.GET("/matches/potential/:petId", matchHandler.Potential)
	v1.POST("/matches/like", matchHandler.Like)
	v1.GET("/matches/:petId", matchHandler.Confirmed)
	v1.POST("/matches/unmatch", matchHandler.Unmatch)

	v1.GET("/chats", chatHandler.List)
	v1.GET("/chats/:id", chatHandler.Get)
	v1.POST("/chats/:id/messages", chatHandler.SendMessage)
	v1.POST("/chats/for-match", chatHandler.ForMatch)

	return srv.Run(":" + cfg.Port)
}
