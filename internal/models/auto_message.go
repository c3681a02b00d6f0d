package models

import "time"

// Auto message lifecycle flags. A job is created pending, flipped to queued
// by the dispatch tick and to sent by the queue consumer; the progression is
// monotonic and never regresses.
const (
	TriggerDailyMatch = "daily_match"
)

// AutoMessage is a system-generated scheduled chat message awaiting delivery.
type AutoMessage struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Trigger        string     `gorm:"size:50;not null;index" json:"trigger"`
	Content        string     `gorm:"size:1000;not null" json:"content"`
	SendDate       time.Time  `gorm:"index:idx_auto_dispatch;not null" json:"send_date"`
	IsQueued       bool       `gorm:"index:idx_auto_dispatch;default:false" json:"is_queued"`
	IsSent         bool       `gorm:"index:idx_auto_dispatch;default:false" json:"is_sent"`
	SenderID       uint       `gorm:"not null" json:"sender_id"`
	ReceiverID     uint       `gorm:"not null" json:"receiver_id"`
	ConversationID *uint      `json:"conversation_id,omitempty"`
	CreatedBy      uint       `json:"created_by"`
	DeletedAt      *time.Time `gorm:"index:idx_auto_dispatch" json:"-"`
	DeletedBy      *uint      `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (AutoMessage) TableName() string { return "auto_messages" }
