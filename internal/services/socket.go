package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chatserver/internal/utils"
	"chatserver/pkg/logger"
	"chatserver/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client-originated error event scopes. Each event family reports its
// failures on its own channel so a client can react per feature.
const (
	EventRoomError        = "room_error"
	EventMessageError     = "message_error"
	EventTypingError      = "typing_error"
	EventMessageReadError = "message_read_error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChatSocket owns the websocket endpoint: it authenticates the handshake,
// runs each connection's read loop, and turns inbound frames into persisted
// state plus relay publishes. Nothing is delivered to a local client
// directly on the broadcast path; every broadcast goes through the relay so
// all instances observe the same per-room order.
type ChatSocket struct {
	hub           *Hub
	relay         *Relay
	presence      *PresenceStore
	revocations   *RevocationStore
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	log           zerolog.Logger
}

func NewChatSocket(
	hub *Hub,
	relay *Relay,
	presence *PresenceStore,
	revocations *RevocationStore,
	users *UserService,
	conversations *ConversationService,
	messages *MessageService,
) *ChatSocket {
	return &ChatSocket{
		hub:           hub,
		relay:         relay,
		presence:      presence,
		revocations:   revocations,
		users:         users,
		conversations: conversations,
		messages:      messages,
		log:           logger.Module("socket"),
	}
}

// HandleWS upgrades an authenticated HTTP request to a websocket connection.
// The token comes from the "token" query parameter or a bearer header; the
// revocation check runs before signature verification so a blacklisted token
// is rejected without any crypto work.
func (s *ChatSocket) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		response.Error(c, response.NewUnauthorized("Token not provided"))
		return
	}

	revoked, err := s.revocations.IsRevoked(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	if revoked {
		response.Error(c, response.NewUnauthorized("Invalid or expired token"))
		return
	}

	claims, err := utils.ParseAccessToken(token)
	if err != nil {
		response.Error(c, response.NewUnauthorized("Invalid or expired token"))
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), claims.UserID, false)
	if err != nil {
		response.Error(c, response.NewUnauthorized("Invalid or expired token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		UserID:   user.ID,
		Username: user.Username,
		conn:     conn,
		send:     make(chan []byte, 256),
		rooms:    make(map[uint]bool),
	}
	s.hub.register(client)
	go s.hub.writePump(client)

	ctx := context.Background()
	if err := s.presence.Add(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Uint("user_id", user.ID).Msg("presence add failed")
	}
	s.publishGlobal(ctx, EventUserOnline, gin.H{"userId": user.ID, "username": user.Username}, 0)

	if ids, err := s.presence.Members(ctx); err == nil {
		s.hub.sendDirect(client, EventOnlineUsersList, ids)
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("client connected")
	s.readLoop(client)
}

func (s *ChatSocket) readLoop(c *Client) {
	defer s.disconnect(c)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		ctx := context.Background()
		switch frame.Event {
		case "join_room":
			s.handleJoinRoom(ctx, c, frame.Payload)
		case "send_message":
			s.handleSendMessage(ctx, c, frame.Payload)
		case "start_typing":
			s.handleTyping(ctx, c, frame.Payload, true)
		case "stop_typing":
			s.handleTyping(ctx, c, frame.Payload, false)
		case "message_read":
			s.handleMessageRead(ctx, c, frame.Payload)
		}
	}
}

func (s *ChatSocket) disconnect(c *Client) {
	s.hub.unregister(c)
	c.conn.Close()

	ctx := context.Background()
	// Presence is shared across instances; only drop it once the user's
	// last local connection is gone.
	if s.hub.ConnectionsFor(c.UserID) == 0 {
		removed, err := s.presence.Remove(ctx, c.UserID)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", c.UserID).Msg("presence remove failed")
		}
		if removed {
			s.publishGlobal(ctx, EventUserOffline, gin.H{"userId": c.UserID, "username": c.Username}, 0)
		}
	}
	s.log.Info().Uint("user_id", c.UserID).Msg("client disconnected")
}

type roomPayload struct {
	ConversationID uint `json:"conversationId"`
}

func (s *ChatSocket) handleJoinRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ConversationID == 0 {
		s.hub.sendDirect(c, EventRoomError, gin.H{"message": "Invalid conversation id"})
		return
	}

	conv, err := s.conversations.FindByID(ctx, p.ConversationID, false)
	if err != nil {
		s.hub.sendDirect(c, EventRoomError, gin.H{"message": "Conversation not found"})
		return
	}

	if !conv.HasParticipant(c.UserID) {
		if err := s.conversations.AddParticipant(ctx, conv.ID, c.UserID); err != nil {
			s.hub.sendDirect(c, EventRoomError, gin.H{"message": "Failed to join conversation"})
			return
		}
	}

	s.hub.joinRoom(c, conv.ID)
	s.publishRoom(ctx, conv.ID, EventUserJoinedRoom, gin.H{
		"userId":         c.UserID,
		"username":       c.Username,
		"conversationId": conv.ID,
	}, 0)
	s.log.Debug().Uint("user_id", c.UserID).Uint("conversation_id", conv.ID).Msg("joined room")
}

type sendMessagePayload struct {
	ConversationID uint   `json:"conversationId"`
	Content        string `json:"content"`
}

func (s *ChatSocket) handleSendMessage(ctx context.Context, c *Client, raw json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ConversationID == 0 {
		s.hub.sendDirect(c, EventMessageError, gin.H{"message": "Invalid conversation id"})
		return
	}

	content, err := utils.SanitizeContent(p.Content)
	if err != nil {
		s.hub.sendDirect(c, EventMessageError, gin.H{"message": err.Error()})
		return
	}

	conv, err := s.conversations.FindByID(ctx, p.ConversationID, false)
	if err != nil || !conv.HasParticipant(c.UserID) {
		s.hub.sendDirect(c, EventMessageError, gin.H{"message": "You are not a participant of this conversation"})
		return
	}

	msg, err := s.messages.Create(ctx, conv.ID, c.UserID, content)
	if err != nil {
		s.log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("message create failed")
		s.hub.sendDirect(c, EventMessageError, gin.H{"message": "Failed to send message"})
		return
	}

	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, msg.ID); err != nil {
		s.log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("last message update failed")
	}

	s.publishRoom(ctx, conv.ID, EventMessageReceived, gin.H{
		"id":             msg.ID,
		"conversationId": msg.ConversationID,
		"senderId":       msg.SenderID,
		"content":        msg.Content,
		"createdAt":      msg.CreatedAt,
		"username":       c.Username,
	}, 0)
}

func (s *ChatSocket) handleTyping(ctx context.Context, c *Client, raw json.RawMessage, typing bool) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ConversationID == 0 {
		s.hub.sendDirect(c, EventTypingError, gin.H{"message": "Invalid typing status data"})
		return
	}

	// Typing indicators skip the typist on every instance.
	s.publishRoom(ctx, p.ConversationID, EventUserTyping, gin.H{
		"userId":         c.UserID,
		"username":       c.Username,
		"isTyping":       typing,
		"conversationId": p.ConversationID,
	}, c.UserID)
}

type messageReadPayload struct {
	MessageID      uint `json:"messageId"`
	ConversationID uint `json:"conversationId"`
}

func (s *ChatSocket) handleMessageRead(ctx context.Context, c *Client, raw json.RawMessage) {
	var p messageReadPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.MessageID == 0 {
		s.hub.sendDirect(c, EventMessageReadError, gin.H{"message": "Invalid message id"})
		return
	}

	msg, created, err := s.messages.MarkRead(ctx, p.MessageID, c.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOwnMessageRead):
			s.hub.sendDirect(c, EventMessageReadError, gin.H{"message": "Cannot mark own message as read"})
		case errors.Is(err, ErrMessageNotFound):
			s.hub.sendDirect(c, EventMessageReadError, gin.H{"message": "Message not found"})
		default:
			s.hub.sendDirect(c, EventMessageReadError, gin.H{"message": "Failed to mark message as read"})
		}
		return
	}
	if !created {
		s.hub.sendDirect(c, EventMessageReadError, gin.H{"message": "Message already marked as read by this user"})
		return
	}

	s.publishRoom(ctx, msg.ConversationID, EventMessageReadReceipt, gin.H{
		"messageId":      msg.ID,
		"readerId":       c.UserID,
		"readAt":         time.Now().UTC(),
		"conversationId": msg.ConversationID,
	}, 0)
}

func (s *ChatSocket) publishRoom(ctx context.Context, roomID uint, event string, payload interface{}, exclude uint) {
	err := s.relay.PublishRoom(ctx, roomID, RelayEvent{
		Event:         event,
		ExcludeUserID: exclude,
		Payload:       payload,
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Uint("room", roomID).Msg("relay publish failed")
	}
}

func (s *ChatSocket) publishGlobal(ctx context.Context, event string, payload interface{}, exclude uint) {
	err := s.relay.PublishGlobal(ctx, RelayEvent{
		Event:         event,
		ExcludeUserID: exclude,
		Payload:       payload,
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("relay publish failed")
	}
}
