package services

import "errors"

// Sentinel errors of the service layer. Handlers and the socket layer map
// these onto HTTP statuses or scoped socket error events; nothing in this
// package reasons about transports.
var (
	ErrEmailTaken          = errors.New("email already in use")
	ErrUsernameTaken       = errors.New("username already in use")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrTooFewParticipants   = errors.New("a conversation must have at least two participants")

	ErrMessageNotFound = errors.New("message not found")
	ErrOwnMessageRead  = errors.New("a sender cannot mark their own message as read")
)
