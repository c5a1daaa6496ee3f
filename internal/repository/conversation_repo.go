package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepo handles database operations for Chat
type ChatRepo struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Create inserts a chat. A second chat for the same pair fails with ErrConflict.
func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	chat.User1ID, chat.User2ID = model.OrderedPair(chat.User1ID, chat.User2ID)
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(chat).Error
	return translate("chatRepo.Create", err)
}

// FindByID finds a chat by ID
func (r *ChatRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error; err != nil {
		return nil, translate("chatRepo.FindByID", err)
	}
	return &chat, nil
}

func (r *ChatRepo) FindByPair(ctx context.Context, a, b uuid.UUID) (*model.Chat, error) {
	u1, u2 := model.OrderedPair(a, b)
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&chat).Error
	if err != nil {
		return nil, translate("chatRepo.FindByPair", err)
	}
	return &chat, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	chats := []model.Chat{}
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order(activityOrder).
		Find(&chats).Error
	return chats, translate("chatRepo.ListByUser", err)
}

// TouchLastMessage moves last_message_at forward; an older timestamp is ignored
func (r *ChatRepo) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", id, at).
		Update("last_message_at", at).Error
	return translate("chatRepo.TouchLastMessage", err)
}

// GroupRepo handles database operations for Group and GroupMember
type GroupRepo struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Create(ctx context.Context, group *model.Group, members []model.GroupMember) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		for i := range members {
			members[i].GroupID = group.ID
		}
		return tx.Omit(clause.Associations).Create(&members).Error
	})
	if err != nil {
		return translate("groupRepo.Create", err)
	}
	group.Members = members
	return nil
}

func (r *GroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, translate("groupRepo.FindByID", err)
	}
	return &group, nil
}

// GroupIDsForUser resolves the groups a user belongs to from member rows
func (r *GroupRepo) GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	return ids, translate("groupRepo.GroupIDsForUser", err)
}

func (r *GroupRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order(activityOrder).
		Find(&groups).Error
	return groups, translate("groupRepo.ListByIDs", err)
}

func (r *GroupRepo) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", id, at).
		Update("last_message_at", at).Error
	return translate("groupRepo.TouchLastMessage", err)
}

func (r *GroupRepo) FindMember(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupMember, error) {
	var member model.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate("groupRepo.FindMember", err)
	}
	return &member, nil
}

// ListMembers returns members with their user rows, oldest first
func (r *GroupRepo) ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	members := []model.GroupMember{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&members).Error
	return members, translate("groupRepo.ListMembers", err)
}

// AddMember inserts a member row; an existing membership yields ErrConflict
func (r *GroupRepo) AddMember(ctx context.Context, member *model.GroupMember) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error
	return translate("groupRepo.AddMember", err)
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&model.GroupMember{})
	if res.Error != nil {
		return translate("groupRepo.RemoveMember", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("groupRepo.RemoveMember", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *GroupRepo) UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role model.MemberRole) error {
	res := r.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if res.Error != nil {
		return translate("groupRepo.UpdateMemberRole", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("groupRepo.UpdateMemberRole", gorm.ErrRecordNotFound)
	}
	return nil
}
