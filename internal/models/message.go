package models

import "time"

// Message is one chat message inside a conversation.
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"index;not null" json:"conversation_id"`
	SenderID       uint       `gorm:"index;not null" json:"sender_id"`
	Content        string     `gorm:"size:1000;not null" json:"content"`
	DeletedAt      *time.Time `gorm:"index" json:"-"`
	DeletedBy      *uint      `json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	ReadBy []MessageRead `gorm:"foreignKey:MessageID" json:"read_by,omitempty"`
}

// MessageRead is one per-user read receipt. The composite unique index
// guarantees a reader can mark a message read at most once.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID uint      `gorm:"uniqueIndex:idx_message_reader;not null" json:"message_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_message_reader;not null" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

func (Message) TableName() string     { return "messages" }
func (MessageRead) TableName() string { return "message_reads" }
