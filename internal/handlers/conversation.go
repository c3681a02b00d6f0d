package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"chatserver/internal/middleware"
	"chatserver/internal/services"
	"chatserver/pkg/logger"
	"chatserver/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
	users         *services.UserService
	relay         *services.Relay
	log           zerolog.Logger
}

func NewConversationHandler(
	conversations *services.ConversationService,
	messages *services.MessageService,
	users *services.UserService,
	relay *services.Relay,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		relay:         relay,
		log:           logger.Module("handlers"),
	}
}

// List returns the caller's conversations, most recently active first
// GET /api/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)

	convs, total, err := h.conversations.ListForUser(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewPaginated(convs, total, limit, offset))
}

// Get returns one conversation with a page of its messages
// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	conv, err := h.conversations.FindByID(c.Request.Context(), id, false)
	if err != nil {
		response.Error(c, response.NewNotFound("Conversation not found"))
		return
	}
	if !conv.HasParticipant(middleware.GetUserID(c)) {
		response.Error(c, response.NewForbidden("You are not a participant of this conversation"))
		return
	}

	limit, offset := pageParams(c)
	msgs, total, err := h.messages.ListByConversation(c.Request.Context(), conv.ID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"conversation": conv,
		"messages":     response.NewPaginated(msgs, total, limit, offset),
	})
}

type createConversationRequest struct {
	ParticipantIDs []uint `json:"participantIds" binding:"required,min=1"`
}

// Create starts a conversation with the given participants. The caller is
// always included. An existing conversation with the exact same participant
// set is returned instead of creating a duplicate.
// POST /api/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest(err.Error()))
		return
	}

	userID := middleware.GetUserID(c)
	ids := append([]uint{userID}, req.ParticipantIDs...)

	valid, err := h.users.AllExistAndActive(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !valid {
		response.Error(c, response.NewBadRequest("One or more participant ids are invalid, inactive, or deleted"))
		return
	}

	if existing, err := h.conversations.FindByParticipants(c.Request.Context(), ids); err == nil {
		response.Success(c, existing)
		return
	} else if !errors.Is(err, services.ErrConversationNotFound) {
		response.Error(c, err)
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), ids, userID)
	if err != nil {
		if errors.Is(err, services.ErrTooFewParticipants) {
			response.Error(c, response.NewBadRequest("A conversation must have at least two participants"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Created(c, conv)
}

// Leave removes the caller from a conversation. When only two participants
// remain the conversation is closed instead, since a one-person chat is
// useless.
// POST /api/conversations/:id/leave
func (h *ConversationHandler) Leave(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	user := middleware.GetUser(c)

	conv, err := h.conversations.FindByID(c.Request.Context(), id, false)
	if err != nil {
		response.Error(c, response.NewNotFound("Conversation not found"))
		return
	}
	if !conv.HasParticipant(user.ID) {
		response.Error(c, response.NewForbidden("You are not a participant of this conversation"))
		return
	}

	if len(conv.Participants) == 2 {
		if err := h.conversations.SoftDelete(c.Request.Context(), conv.ID, user.ID); err != nil {
			response.Error(c, err)
			return
		}
		h.broadcastLeft(c, conv.ID, user.ID, user.Username,
			fmt.Sprintf("%s has left the conversation (conversation closed)", user.Username))
		response.Success(c, gin.H{"message": "Conversation closed successfully as you were the last participant"})
		return
	}

	if err := h.conversations.RemoveParticipant(c.Request.Context(), conv.ID, user.ID); err != nil {
		response.Error(c, err)
		return
	}
	h.broadcastLeft(c, conv.ID, user.ID, user.Username,
		fmt.Sprintf("%s has left the conversation", user.Username))
	response.Success(c, gin.H{"message": "Successfully left the conversation"})
}

func (h *ConversationHandler) broadcastLeft(c *gin.Context, conversationID, userID uint, username, message string) {
	err := h.relay.PublishRoom(c.Request.Context(), conversationID, services.RelayEvent{
		Event: services.EventUserLeftRoom,
		Payload: gin.H{
			"conversationId": conversationID,
			"userId":         userID,
			"username":       username,
			"message":        message,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Uint("conversation_id", conversationID).Msg("relay publish failed")
	}
}

func conversationIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, response.NewBadRequest("Invalid conversation id"))
		return 0, false
	}
	return uint(id), true
}
