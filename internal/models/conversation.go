package models

import "time"

// Conversation is a chat between two or more participants. LastMessageID
// tracks the most recent message for listing previews.
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	LastMessageID *uint      `gorm:"index" json:"last_message_id"`
	CreatedBy     uint       `gorm:"not null" json:"created_by"`
	DeletedAt     *time.Time `gorm:"index" json:"-"`
	DeletedBy     *uint      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// ConversationParticipant is one membership row. The composite unique index
// makes re-adding a participant a no-op at the database level.
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ConversationID uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"user_id"`
	CreatedAt      time.Time `json:"joined_at"`
}

func (Conversation) TableName() string            { return "conversations" }
func (ConversationParticipant) TableName() string { return "conversation_participants" }

// ParticipantIDs returns the user ids of all loaded participants.
func (c *Conversation) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether the given user belongs to the conversation.
// Participants must be preloaded.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
