package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/middleware"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
	"github.com/quocanhngo/talkhub/internal/ws"
	"github.com/quocanhngo/talkhub/pkg/auth"
	"github.com/redis/go-redis/v9"
)

const wsEventTimeout = 10 * time.Second

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub            *ws.Hub
	gate           *service.AccessGate
	messageService *service.MessageService
	jwtManager     *auth.JWTManager
	rdb            *redis.Client
	opts           ws.Options
	upgrader       websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, gate *service.AccessGate, messageService *service.MessageService, jwtManager *auth.JWTManager, rdb *redis.Client, opts ws.Options) *WSHandler {
	return &WSHandler{
		hub:            hub,
		gate:           gate,
		messageService: messageService,
		jwtManager:     jwtManager,
		rdb:            rdb,
		opts:           opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginChecker(nil),
		},
	}
}

// WithOrigins restricts the handshake to the given browser origins
func (h *WSHandler) WithOrigins(origins []string) *WSHandler {
	h.upgrader.CheckOrigin = middleware.OriginChecker(origins)
	return h
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection
// Client connects with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// WebSocket can't use the Authorization header from browsers
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Token required"})
		return
	}

	revoked, err := middleware.TokenRevoked(c.Request.Context(), h.rdb, tokenString)
	if err != nil {
		logger.Errorf("blacklist lookup: %v", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Auth server error"})
		return
	}
	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil || revoked {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Username, h.opts)
	h.hub.Register(client)
	logger.Debugf("WS connected: user=%s username=%s", claims.UserID, claims.Username)

	go client.WritePump()
	go client.ReadPump(h.HandleEvent)
}

// HandleEvent processes one event received from a client
func (h *WSHandler) HandleEvent(client *ws.Client, event model.WSEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), wsEventTimeout)
	defer cancel()

	var err error
	switch event.Type {
	case model.WSEventJoinChat:
		err = h.join(ctx, client, event, model.ConversationChat)
	case model.WSEventJoinGroup:
		err = h.join(ctx, client, event, model.ConversationGroup)
	case model.WSEventLeaveChat:
		err = h.leave(client, event, model.ConversationChat)
	case model.WSEventLeaveGroup:
		err = h.leave(client, event, model.ConversationGroup)
	case model.WSEventTyping:
		err = h.typing(client, event)
	case model.WSEventMarkRead:
		err = h.markRead(ctx, client, event)
	default:
		err = apperr.Validation("unknown event type " + event.Type)
	}

	if err != nil {
		client.Emit(model.WSEvent{
			Type:    model.WSEventError,
			Payload: gin.H{"event": event.Type, "error": clientError(event.Type, client.UserID, err)},
		})
	}
}

// clientError is the message sent back for a failed event. Store failures are
// logged and only described outside release mode.
func clientError(eventType string, userID uuid.UUID, err error) string {
	if !apperr.IsStoreFailure(err) {
		logger.Debugf("WS %s from %s: %v", eventType, userID, err)
		return err.Error()
	}
	logger.Errorf("WS %s from %s: %v", eventType, userID, err)
	if gin.Mode() == gin.ReleaseMode {
		return "Internal server error"
	}
	return err.Error()
}

func decodePayload(event model.WSEvent, v any) error {
	raw, ok := event.Payload.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(event.Payload); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Validation("malformed payload")
	}
	return nil
}

// join checks membership before subscribing, so a client can only listen to
// conversations it belongs to
func (h *WSHandler) join(ctx context.Context, client *ws.Client, event model.WSEvent, kind model.ConversationKind) error {
	var req model.RoomRequest
	if err := decodePayload(event, &req); err != nil {
		return err
	}
	ref := model.ConversationRef{Kind: kind, ID: req.ID}
	if err := h.gate.AssertConversationAccess(ctx, ref, client.UserID); err != nil {
		return err
	}
	h.hub.Join(client, ref)
	return nil
}

func (h *WSHandler) leave(client *ws.Client, event model.WSEvent, kind model.ConversationKind) error {
	var req model.RoomRequest
	if err := decodePayload(event, &req); err != nil {
		return err
	}
	h.hub.Leave(client, model.ConversationRef{Kind: kind, ID: req.ID})
	return nil
}

// typing is relayed only for rooms the client has joined, which already
// passed the membership check
func (h *WSHandler) typing(client *ws.Client, event model.WSEvent) error {
	var req model.TypingRequest
	if err := decodePayload(event, &req); err != nil {
		return err
	}
	ref := model.ConversationRef{Kind: req.Kind, ID: req.ID}
	if !client.InRoom(ref) {
		return apperr.Validation("join the conversation first")
	}
	h.hub.BroadcastTyping(ref, client.UserID, client.Username, req.IsTyping)
	return nil
}

func (h *WSHandler) markRead(ctx context.Context, client *ws.Client, event model.WSEvent) error {
	var ref model.ConversationRef
	if err := decodePayload(event, &ref); err != nil {
		return err
	}
	if !ref.Valid() {
		return apperr.Validation("malformed payload")
	}
	_, err := h.messageService.MarkRead(ctx, ref, client.UserID)
	return err
}
