package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"chatserver/internal/models"
	"gorm.io/gorm"
)

// ConversationService owns conversation records and their participant sets.
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

func (s *ConversationService) scope(ctx context.Context, includeDeleted bool) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Conversation{})
	if !includeDeleted {
		q = q.Where("conversations.deleted_at IS NULL")
	}
	return q
}

// FindByID loads a conversation with its participants.
func (s *ConversationService) FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.scope(ctx, includeDeleted).
		Preload("Participants").
		Where("conversations.id = ?", id).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the conversations a user participates in, paginated.
func (s *ConversationService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Conversation, int64, error) {
	base := s.scope(ctx, false).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{}).Preload("Participants").Order("conversations.updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

// FindByParticipants looks up the conversation whose participant set exactly
// matches ids, regardless of order. Returns ErrConversationNotFound when no
// such conversation exists.
func (s *ConversationService) FindByParticipants(ctx context.Context, ids []uint) (*models.Conversation, error) {
	ids = dedupeSorted(ids)
	if len(ids) == 0 {
		return nil, ErrConversationNotFound
	}

	// A conversation matches when it has exactly len(ids) participant rows
	// and none of them fall outside the wanted set.
	sub := s.db.Table("conversation_participants").
		Select("conversation_id").
		Group("conversation_id").
		Having("COUNT(*) = ? AND SUM(CASE WHEN user_id IN ? THEN 0 ELSE 1 END) = 0", len(ids), ids)

	var conv models.Conversation
	err := s.scope(ctx, false).
		Preload("Participants").
		Where("conversations.id IN (?)", sub).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Create creates a conversation for the given participant set. Duplicates in
// the input collapse; the stored set is order-independent.
func (s *ConversationService) Create(ctx context.Context, participantIDs []uint, createdBy uint) (*models.Conversation, error) {
	participantIDs = dedupeSorted(participantIDs)
	if len(participantIDs) < 2 {
		return nil, ErrTooFewParticipants
	}

	conv := models.Conversation{CreatedBy: createdBy}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, id := range participantIDs {
			p := models.ConversationParticipant{ConversationID: conv.ID, UserID: id}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.FindByID(ctx, conv.ID, false)
}

// FindOrCreateByParticipants resolves the conversation for a participant
// set, creating it when absent. The queue consumer uses this to target auto
// messages between paired users.
func (s *ConversationService) FindOrCreateByParticipants(ctx context.Context, ids []uint, createdBy uint) (*models.Conversation, error) {
	conv, err := s.FindByParticipants(ctx, ids)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}
	return s.Create(ctx, ids, createdBy)
}

// AddParticipant adds a user to a conversation. Adding an existing
// participant is a no-op.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, userID uint) error {
	p := models.ConversationParticipant{ConversationID: conversationID, UserID: userID}
	return s.db.WithContext(ctx).
		Where(models.ConversationParticipant{ConversationID: conversationID, UserID: userID}).
		FirstOrCreate(&p).Error
}

// RemoveParticipant drops a user from a conversation's participant set.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, userID uint) error {
	return s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationParticipant{}).Error
}

// UpdateLastMessage moves the conversation's last-message pointer.
func (s *ConversationService) UpdateLastMessage(ctx context.Context, conversationID, messageID uint) error {
	return s.scope(ctx, false).
		Where("conversations.id = ?", conversationID).
		Updates(map[string]interface{}{"last_message_id": messageID, "updated_at": time.Now()}).Error
}

// SoftDelete closes a conversation without removing its history.
func (s *ConversationService) SoftDelete(ctx context.Context, conversationID, deletedBy uint) error {
	now := time.Now()
	res := s.scope(ctx, false).Where("conversations.id = ?", conversationID).Updates(map[string]interface{}{
		"deleted_at": now,
		"deleted_by": deletedBy,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func dedupeSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
