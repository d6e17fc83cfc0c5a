package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/support-chat-backend/internal/assistant"
	"github.com/shinyyama/support-chat-backend/internal/config"
	"github.com/shinyyama/support-chat-backend/internal/handler"
	appmw "github.com/shinyyama/support-chat-backend/internal/middleware"
	"github.com/shinyyama/support-chat-backend/internal/push"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"github.com/shinyyama/support-chat-backend/internal/service"
	"github.com/shinyyama/support-chat-backend/internal/ws"
	"gorm.io/gorm"
)

type Server struct {
	e   *echo.Echo
	hub *ws.Hub
}

func New(db *gorm.DB, cfg *config.Config, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			if strings.HasSuffix(u.Hostname(), "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	readRepo := repository.NewReadStateRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	roomSvc := service.NewRoomService(roomRepo)
	presenceSvc := service.NewPresenceService(roomRepo, msgRepo, readRepo)
	hub := ws.NewHub(presenceSvc)
	chatSvc := service.NewChatService(msgRepo, roomSvc, hub, assistant.NewClient(cfg.GeminiModel))

	var pushSender service.PushSender
	if cfg.FirebaseProjectID != "" {
		pc, err := push.NewClient(context.Background(), cfg.FirebaseProjectID, cfg.FirebaseCredsFile)
		if err != nil {
			log.Printf("push channel unavailable: %v", err)
		} else {
			pushSender = pc
		}
	}
	broadcastSvc := service.NewBroadcastService(userRepo, notifRepo, hub, pushSender, cfg.BroadcastWorkers)

	chatHandler := handler.NewChatHandler(roomSvc, chatSvc, presenceSvc)
	notifHandler := handler.NewNotificationHandler(notifRepo, broadcastSvc)
	userHandler := handler.NewUserHandler(userRepo)
	gateway := ws.NewGateway(roomSvc, chatSvc, presenceSvc, broadcastSvc)

	authMw, err := appmw.NewAuthMiddleware(context.Background(), cfg.FirebaseProjectID)
	if err != nil {
		e.Logger.Fatalf("failed to init firebase auth: %v", err)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	e.GET("/ws", ws.Serve(hub, gateway), authMw.RequireAuth)

	api := e.Group("/api", authMw.RequireAuth)
	api.POST("/me/register", userHandler.Register)
	api.GET("/rooms/check", chatHandler.CheckRoom)
	api.POST("/rooms", chatHandler.CreateRoom)
	api.GET("/rooms", chatHandler.ListRooms)
	api.GET("/rooms/:id/messages", chatHandler.ListMessages)
	api.POST("/rooms/:id/messages", chatHandler.PostMessage)
	api.POST("/rooms/:id/read", chatHandler.MarkRead)
	api.POST("/rooms/:id/close", chatHandler.CloseRoom)
	api.GET("/notifications", notifHandler.List)
	api.POST("/notifications/read", notifHandler.MarkAllRead)
	api.POST("/notifications/broadcast", notifHandler.SendGroupNotification)

	return &Server{e: e, hub: hub}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	return s.e.Shutdown(ctx)
}
