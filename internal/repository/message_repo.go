package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepo handles database operations for Message and MessageReaction
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts a new message. The conversation row is not touched.
func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
	return translate("messageRepo.Create", err)
}

// FindByID finds a message by ID, soft-deleted ones included
func (r *MessageRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, translate("messageRepo.FindByID", err)
	}
	return &msg, nil
}

func (r *MessageRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	if len(ids) == 0 {
		return messages, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&messages).Error
	return messages, translate("messageRepo.FindByIDs", err)
}

func (r *MessageRepo) ListByConversation(ctx context.Context, ref model.ConversationRef, offset, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Scopes(conversationScope(ref)).
		Where("messages.is_deleted = ?", false).
		Order("messages.created_at DESC, messages.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	return messages, translate("messageRepo.ListByConversation", err)
}

// LastMessage returns the newest non-deleted message, or ErrNotFound
func (r *MessageRepo) LastMessage(ctx context.Context, ref model.ConversationRef) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Scopes(conversationScope(ref)).
		Where("messages.is_deleted = ?", false).
		Order("messages.created_at DESC, messages.id DESC").
		First(&msg).Error
	if err != nil {
		return nil, translate("messageRepo.LastMessage", err)
	}
	return &msg, nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Update("is_deleted", true)
	if res.Error != nil {
		return translate("messageRepo.SoftDelete", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("messageRepo.SoftDelete", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, readIDs map[uuid.UUID]struct{}) (int64, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&model.Message{}).
		Scopes(conversationScope(ref)).
		Where("messages.is_deleted = ? AND messages.sender_id <> ?", false, userID)

	switch {
	case readIDs == nil:
		reads := db.Table("message_reads").
			Select("1").
			Where("message_reads.message_id = messages.id AND message_reads.user_id = ?", userID)
		query = query.Where("NOT EXISTS (?)", reads)
	case len(readIDs) > 0:
		ids := make([]uuid.UUID, 0, len(readIDs))
		for id := range readIDs {
			ids = append(ids, id)
		}
		query = query.Where("messages.id NOT IN ?", ids)
	}

	var count int64
	err := query.Count(&count).Error
	return count, translate("messageRepo.CountUnread", err)
}

// ToggleReaction removes the reaction if present, otherwise adds it
func (r *MessageRepo) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&model.MessageReaction{})
	if res.Error != nil {
		return false, translate("messageRepo.ToggleReaction", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	reaction := model.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: at}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error
	if err != nil {
		return false, translate("messageRepo.ToggleReaction", err)
	}
	return true, nil
}

func (r *MessageRepo) ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]model.MessageReaction, error) {
	reactions := []model.MessageReaction{}
	if len(messageIDs) == 0 {
		return reactions, nil
	}
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, translate("messageRepo.ListReactions", err)
}
