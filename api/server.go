package api

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/notification"
	"github.com/fundlane/notify-BE/internal/token"
	"github.com/fundlane/notify-BE/internal/util"
	"github.com/fundlane/notify-BE/internal/worker"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Server struct {
	router        *gin.Engine
	dbStore       db.Store
	tokenMaker    token.Maker
	config        *util.Config
	dispatcher    *notification.Dispatcher
	tracker       *notification.ReadTracker
	taskInspector worker.TaskInspector
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(store db.Store, dispatcher *notification.Dispatcher, tracker *notification.ReadTracker, taskInspector worker.TaskInspector, config *util.Config) (*Server, error) {
	// Create a new JWT token maker
	tokenMaker, err := token.NewJWTMaker(config.TokenSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token maker: %w", err)
	}
	log.Info().Msg("Token maker created successfully ✅")

	server := &Server{
		dbStore:       store,
		tokenMaker:    tokenMaker,
		config:        config,
		dispatcher:    dispatcher,
		tracker:       tracker,
		taskInspector: taskInspector,
	}

	server.setupRouter()
	return server, nil
}

// setupRouter configures the HTTP server routes.
func (server *Server) setupRouter() *gin.Engine {
	gin.ForceConsoleColor()
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	v1 := router.Group("/v1")

	v1.GET("/health", server.checkHealth)
	v1.POST("/tokens/verify", server.verifyAccessToken)

	notificationGroup := v1.Group("/notifications", authMiddleware(server.tokenMaker))
	{
		notificationGroup.POST("", server.createNotification)
		notificationGroup.POST("/batch", server.createNotificationsBatch)
		notificationGroup.GET("", server.listNotifications)
		notificationGroup.GET("/unread-count", server.getUnreadCount)
		notificationGroup.PATCH("/read-all", server.markAllNotificationsRead)
		notificationGroup.GET(":id", server.getNotification)
		notificationGroup.PATCH(":id/read", server.markNotificationRead)
		notificationGroup.PATCH(":id/delivered", server.markNotificationDelivered)
		notificationGroup.PATCH(":id/cancel", server.cancelNotification)
		notificationGroup.DELETE(":id", server.deleteNotification)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server.router = router
	return router
}

// Start runs the HTTP server on a specific address.
func (server *Server) Start(address string) error {
	return server.router.Run(address)
}
