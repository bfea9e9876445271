package http

import (
	"fmt"
	"log"
	"net/http"

	"anoa.com/sociablechat/internal/modules/notification/dto"
	notifService "anoa.com/sociablechat/internal/modules/notification/service"
	"anoa.com/sociablechat/pkg/apperror"
	"anoa.com/sociablechat/pkg/response"
	"anoa.com/sociablechat/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type NotificationHandler struct {
	service     notifService.NotificationService
	redisClient *redis.Client
	upgrader    websocket.Upgrader
}

func NewNotificationHandler(service notifService.NotificationService, redisClient *redis.Client) *NotificationHandler {
	return &NotificationHandler{
		service:     service,
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// REST Endpoints

// GetNotifications handles GET /notifications/:id[?category=] where :id is
// the requesting user. Returns the feed, the unread total and the
// per-category breakdown in one payload.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, err := h.selfOnly(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	feed, err := h.service.List(c.Request.Context(), userID, c.Query("category"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

// UnreadCount handles GET /notifications/:id/unread-count. Polled every 30s
// by every open tab, hence the separate light endpoint.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := h.selfOnly(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

// MarkClicked handles PATCH /notifications/:id/clicked.
func (h *NotificationHandler) MarkClicked(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.MarkClicked(c.Request.Context(), id, userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as clicked"})
}

// Dismiss handles PATCH /notifications/:id/dismiss.
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.Dismiss(c.Request.Context(), id, userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "dismissed"})
}

// ExecuteAction handles POST /notifications/action.
func (h *NotificationHandler) ExecuteAction(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	notificationID, err := uuid.Parse(req.NotificationID)
	if err != nil {
		response.ResponseError(c, apperror.ErrInvalidInput)
		return
	}

	result, err := h.service.ExecuteAction(c.Request.Context(), notificationID, *req.ActionIndex, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// WebSocket Endpoint

// HandleWebSocket streams freshly created notifications over a websocket,
// backed by the redis pub/sub channel the service publishes to. Polling
// stays authoritative; this only shortens the badge latency.
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	if h.redisClient == nil {
		log.Println("Redis client is nil, cannot subscribe")
		return
	}

	channel := fmt.Sprintf("user_notifications:%s", userIDStr)
	pubsub := h.redisClient.Subscribe(c.Request.Context(), channel)
	defer pubsub.Close()

	// Wait for confirmation that subscription is created
	_, err = pubsub.Receive(c.Request.Context())
	if err != nil {
		log.Printf("Failed to subscribe to redis channel: %v", err)
		return
	}

	ch := pubsub.Channel()

	// Signal when the client goes away so the forward loop can stop.
	clientClosed := make(chan struct{})

	go func() {
		defer close(clientClosed)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			// Payload is already the JSON-encoded notification.
			err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload))
			if err != nil {
				log.Printf("Failed to write message to websocket: %v", err)
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *NotificationHandler) selfOnly(c *gin.Context) (uuid.UUID, error) {
	userID, err := response.GetUserID(c)
	if err != nil {
		return uuid.Nil, err
	}
	pathID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if pathID != userID {
		return uuid.Nil, apperror.ErrForbidden
	}
	return userID, nil
}
