package server

import (
	"log"
	"os"
	"strings"
	"time"

	"anoa.com/sociablechat/internal/middleware"
	"anoa.com/sociablechat/pkg/storage"

	convHttp "anoa.com/sociablechat/internal/modules/conversation/delivery/http"
	convRepo "anoa.com/sociablechat/internal/modules/conversation/repository"
	convService "anoa.com/sociablechat/internal/modules/conversation/service"

	groupHttp "anoa.com/sociablechat/internal/modules/group/delivery/http"
	groupRepo "anoa.com/sociablechat/internal/modules/group/repository"
	groupService "anoa.com/sociablechat/internal/modules/group/service"

	notiHttp "anoa.com/sociablechat/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/sociablechat/internal/modules/notification/repository"
	notifService "anoa.com/sociablechat/internal/modules/notification/service"

	presenceHttp "anoa.com/sociablechat/internal/modules/presence/delivery/http"
	presenceRepo "anoa.com/sociablechat/internal/modules/presence/repository"
	presenceService "anoa.com/sociablechat/internal/modules/presence/service"

	searchService "anoa.com/sociablechat/internal/modules/search/service"

	userHttp "anoa.com/sociablechat/internal/modules/user/delivery/http"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	userService "anoa.com/sociablechat/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(db *gorm.DB, redisClient *redis.Client) *Server {
	users := userRepo.NewUserRepository(db)

	imageStorage, err := storage.NewCloudinaryStorage()
	if err != nil {
		log.Fatalf("failed to initialize cloudinary storage: %v", err)
	}
	uploadFolder := os.Getenv("CLOUDINARY_UPLOAD_FOLDER")
	if uploadFolder == "" {
		uploadFolder = "chat_images"
	}

	// Initialize Meilisearch
	meiliHost := os.Getenv("MEILISEARCH_HOST")
	if meiliHost == "" {
		meiliHost = "http://localhost:7700"
	}
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}

	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(os.Getenv("MEILI_MASTER_KEY")))
	searchSvc := searchService.NewSearchService(meiliClient)

	userSvc := userService.NewUserService(users, searchSvc)
	userHandler := userHttp.NewUserHandler(userSvc)

	// Presence Module
	presenceRepository := presenceRepo.NewPresenceRepository(db, redisClient)
	presenceSvc := presenceService.NewPresenceService(presenceRepository, users)
	presenceHandler := presenceHttp.NewPresenceHandler(presenceSvc)

	// Notification Module
	actionBase := os.Getenv("ACTION_API_BASE_URL")
	if actionBase == "" {
		actionBase = "http://localhost:" + getPort() + "/api"
	}
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient, notifService.NewHTTPActionCaller(actionBase))
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, redisClient)

	// Conversation Module
	conversationRepository := convRepo.NewConversationRepository(db)
	conversationSvc := convService.NewConversationService(conversationRepository, users, presenceRepository, imageStorage, uploadFolder)
	conversationHandler := convHttp.NewConversationHandler(conversationSvc)

	// Group Module
	groupRepository := groupRepo.NewGroupRepository(db)
	groupSvc := groupService.NewGroupService(groupRepository, users, presenceRepository, notificationSvc)
	groupHandler := groupHttp.NewGroupHandler(groupSvc)

	router := gin.New()

	setupCORS(router)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(os.Getenv("JWT_SECRET"))

	api := router.Group("/api")

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// User routes
		protected.GET("/users/search", userHandler.SearchUsers)
		protected.PATCH("/users/:id/online-status", presenceHandler.UpdateOnlineStatus)
		// Beacon fallback; page-unload senders can only POST.
		protected.POST("/users/:id/online-status", presenceHandler.UpdateOnlineStatus)
		protected.GET("/users/:id/online-friends", presenceHandler.OnlineFriends)
		protected.GET("/users/:id/all-friends", presenceHandler.AllFriends)

		// Conversation routes
		protected.GET("/messages/:id/conversation/:other_id", conversationHandler.GetOrCreateConversation)
		protected.GET("/messages/:id/conversations", conversationHandler.ListConversations)
		protected.POST("/messages/:id/send", conversationHandler.SendMessage)
		protected.POST("/messages/:id/send-image", conversationHandler.SendImageMessage)
		protected.PATCH("/messages/:id/read/:user_id", conversationHandler.MarkRead)

		// Group routes
		protected.POST("/groups/create", groupHandler.CreateGroup)
		protected.GET("/groups/user/:id", groupHandler.ListGroups)
		protected.GET("/groups/:id", groupHandler.GetGroup)
		protected.POST("/groups/:id/send", groupHandler.SendGroupMessage)
		protected.PATCH("/groups/:id/read/:user_id", groupHandler.MarkRead)
		protected.POST("/groups/:id/leave", groupHandler.LeaveGroup)

		// Notification routes
		protected.POST("/notifications/action", notificationHandler.ExecuteAction)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
		protected.GET("/notifications/:id", notificationHandler.GetNotifications)
		protected.GET("/notifications/:id/unread-count", notificationHandler.UnreadCount)
		protected.PATCH("/notifications/:id/clicked", notificationHandler.MarkClicked)
		protected.PATCH("/notifications/:id/dismiss", notificationHandler.Dismiss)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

func setupCORS(router *gin.Engine) {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
