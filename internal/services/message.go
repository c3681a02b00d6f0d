package services

import (
	"context"
	"errors"
	"time"

	"chatserver/internal/models"
	"gorm.io/gorm"
)

// MessageService owns message records and read receipts.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

func (s *MessageService) scope(ctx context.Context, includeDeleted bool) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Message{})
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	return q
}

// Create persists a message. Content is expected to be sanitized by the
// caller before it gets here.
func (s *MessageService) Create(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageService) FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.Message, error) {
	var msg models.Message
	err := s.scope(ctx, includeDeleted).Preload("ReadBy").Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns a conversation's messages in chronological
// order, paginated.
func (s *MessageService) ListByConversation(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, int64, error) {
	base := s.scope(ctx, false).Where("conversation_id = ?", conversationID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{}).Preload("ReadBy").Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// MarkRead records a read receipt for readerID on the message. Receipts are
// idempotent per reader: marking twice leaves a single entry, and the second
// call reports false. A sender cannot mark their own message as read.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID uint) (*models.Message, bool, error) {
	msg, err := s.FindByID(ctx, messageID, false)
	if err != nil {
		return nil, false, err
	}
	if msg.SenderID == readerID {
		return nil, false, ErrOwnMessageRead
	}

	for _, r := range msg.ReadBy {
		if r.UserID == readerID {
			return msg, false, nil
		}
	}

	receipt := models.MessageRead{
		MessageID: messageID,
		UserID:    readerID,
		ReadAt:    time.Now(),
	}
	// The composite unique index absorbs the race where two connections of
	// the same reader mark concurrently.
	err = s.db.WithContext(ctx).
		Where(models.MessageRead{MessageID: messageID, UserID: readerID}).
		FirstOrCreate(&receipt).Error
	if err != nil {
		return nil, false, err
	}

	msg.ReadBy = append(msg.ReadBy, receipt)
	return msg, true, nil
}
