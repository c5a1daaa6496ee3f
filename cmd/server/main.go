package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/database"
	"github.com/quocanhngo/talkhub/internal/handler"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/middleware"
	"github.com/quocanhngo/talkhub/internal/service"
	"github.com/quocanhngo/talkhub/internal/ws"
	"github.com/quocanhngo/talkhub/pkg/auth"
	"github.com/quocanhngo/talkhub/pkg/notification"
	"github.com/quocanhngo/talkhub/pkg/storage"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           TalkHub API
// @version         1.0
// @description     Real-time chat delivery and read tracking with Go, Gin, WebSocket, Redis Pub/Sub.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@talkhub.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	logger.Init(cfg.App.Env)
	defer logger.Sync()
	logger.Infof("Starting TalkHub API Server [env=%s, db=%s]", cfg.App.Env, cfg.DB.Driver)

	ctx := context.Background()

	// ==================== Database ====================
	store, closeStore, err := database.OpenStore(ctx, cfg.DB, cfg.App.Env)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.DB.Driver, err)
	}
	defer closeStore()

	// ==================== Redis ====================
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		logger.Info("Connected to Redis")
	} else {
		logger.Warnf("Redis disabled: single instance fan-out, logout does not revoke tokens")
	}

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	userService := service.NewUserService(store)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb, cfg.Redis.Channel, func(userID uuid.UUID, online bool) {
		presenceCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		userService.SetPresence(presenceCtx, userID, online)
		logger.Debugf("User %s online=%v", userID, online)
	})

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	gate := service.NewAccessGate(store.Chats, store.Groups)
	var pushers []notification.Notifier
	if fcm := notification.NewFCM(ctx, cfg.Push.FCMCredentialsFile, store.Devices); fcm != nil {
		pushers = append(pushers, fcm)
	}
	if wp := notification.NewWebPush(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.VAPIDSubscriber, store.Devices); wp != nil {
		pushers = append(pushers, wp)
	}
	var notifier service.Notifier
	if len(pushers) > 0 {
		notifier = notification.NewMulti(pushers...)
	} else {
		logger.Info("Push notifications disabled")
	}

	authService := service.NewAuthService(store.Users, jwtManager, rdb)
	chatService := service.NewChatService(store, gate)
	groupService := service.NewGroupService(store, gate, hub)
	messageService := service.NewMessageService(store, gate, hub, notifier, cfg.Paging)

	fileStorage := newStorage(ctx, cfg.Storage)

	hs := &handler.Handlers{
		Auth:    handler.NewAuthHandler(authService, fileStorage),
		Users:   handler.NewUserHandler(userService),
		Chats:   handler.NewChatHandler(chatService),
		Groups:  handler.NewGroupHandler(groupService),
		Message: handler.NewMessageHandler(messageService),
		Upload:  handler.NewUploadHandler(fileStorage),
		WS: handler.NewWSHandler(hub, gate, messageService, jwtManager, rdb, ws.Options{
			SendBuffer:     cfg.Hub.SendBuffer,
			MaxMessageSize: cfg.Hub.MaxMessageSize,
		}).WithOrigins(cfg.CORS.Origins),
	}

	// ==================== Gin Router ====================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware(cfg.CORS.Origins))

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "talkhub-api",
			"db":      cfg.DB.Driver,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	hs.Register(router, middleware.AuthMiddleware(jwtManager, rdb))

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	logger.Infof("TalkHub API running on http://0.0.0.0:%s", cfg.App.Port)
	logger.Infof("API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	logger.Infof("WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	hubCancel()
	logger.Info("Server exited gracefully")
}

// newStorage returns nil when the configured backend is unreachable; uploads
// are then disabled.
func newStorage(ctx context.Context, cfg config.StorageConfig) storage.Storage {
	switch cfg.Provider {
	case "cloudinary":
		s, err := storage.NewCloudinary(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		if err != nil {
			logger.Warnf("Cloudinary not available: %v (file upload disabled)", err)
			return nil
		}
		logger.Info("Using Cloudinary storage")
		return s
	default:
		s, err := storage.NewMinIO(ctx, storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			PublicURL: cfg.MinIO.PublicURL,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warnf("MinIO not available: %v (file upload disabled)", err)
			return nil
		}
		logger.Info("Connected to MinIO")
		return s
	}
}
