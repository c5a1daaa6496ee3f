package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadRepo handles per-message read rows
type ReadRepo struct {
	db *gorm.DB
}

func NewReadRepository(db *gorm.DB) *ReadRepo {
	return &ReadRepo{db: db}
}

func (r *ReadRepo) MarkRead(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	defer logger.DeferLogDuration("readRepo.MarkRead", time.Now())()

	db := r.db.WithContext(ctx)

	candidates := []uuid.UUID{}
	err := db.Model(&model.Message{}).
		Scopes(conversationScope(ref)).
		Where("messages.is_deleted = ? AND messages.sender_id <> ?", false, userID).
		Order("messages.created_at ASC").
		Pluck("messages.id", &candidates).Error
	if err != nil {
		return nil, translate("readRepo.MarkRead", err)
	}

	already, err := r.ReadIDs(ctx, ref, userID)
	if err != nil {
		return nil, err
	}

	marked := []uuid.UUID{}
	var errs []error
	for _, id := range candidates {
		if _, ok := already[id]; ok {
			continue
		}
		row := model.MessageRead{MessageID: id, UserID: userID, ReadAt: at}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			// a concurrent mark-read got there first
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				continue
			}
			errs = append(errs, fmt.Errorf("message %s: %w", id, res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		marked = append(marked, id)
	}

	if len(errs) > 0 {
		return marked, fmt.Errorf("readRepo.MarkRead: %w", errors.Join(errs...))
	}
	return marked, nil
}

func (r *ReadRepo) IsRead(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MessageRead{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, translate("readRepo.IsRead", err)
}

// ReadIDs returns the ids of messages in ref that userID has read
func (r *ReadRepo) ReadIDs(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).
		Table("message_reads").
		Joins("JOIN messages ON messages.id = message_reads.message_id").
		Where("message_reads.user_id = ?", userID).
		Scopes(conversationScope(ref)).
		Pluck("message_reads.message_id", &ids).Error
	if err != nil {
		return nil, translate("readRepo.ReadIDs", err)
	}

	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
