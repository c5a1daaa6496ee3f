package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/model"
	"gorm.io/gorm"
)

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Search(ctx context.Context, query string, excludeUserID uuid.UUID, limit int) ([]model.User, error)
	UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, updates ProfileUpdate) error
}

// ProfileUpdate lists the profile fields to change; nil/empty fields are kept.
type ProfileUpdate struct {
	Username  string
	AvatarURL *string
	Status    *string
}

// ContactRepository persists one-directional contact entries
type ContactRepository interface {
	Add(ctx context.Context, contact *model.Contact) error
	Remove(ctx context.Context, userID, contactID uuid.UUID) error
	Exists(ctx context.Context, userID, contactID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.User, error)
}

// DeviceRepository persists push targets (FCM tokens and Web Push subscriptions)
type DeviceRepository interface {
	UpsertDevice(ctx context.Context, device *model.UserDevice) error
	ListDevices(ctx context.Context, userID uuid.UUID) ([]model.UserDevice, error)
	DeleteDevice(ctx context.Context, fcmToken string) error
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// ChatRepository is the 1:1 half of the conversation directory
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Chat, error)
	// FindByPair looks the chat up regardless of argument order.
	FindByPair(ctx context.Context, a, b uuid.UUID) (*model.Chat, error)
	// ListByUser returns the user's chats, most recent activity first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Chat, error)
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error
}

// GroupRepository is the group half of the conversation directory plus membership
type GroupRepository interface {
	// Create stores the group and its initial member rows atomically.
	Create(ctx context.Context, group *model.Group, members []model.GroupMember) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Group, error)
	GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// ListByIDs returns the groups, most recent activity first.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Group, error)
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error

	FindMember(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupMember, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error)
	AddMember(ctx context.Context, member *model.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role model.MemberRole) error
}

// MessageRepository is the append-only message store
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Message, error)
	// ListByConversation pages newest first and skips soft-deleted messages.
	ListByConversation(ctx context.Context, ref model.ConversationRef, offset, limit int) ([]model.Message, error)
	LastMessage(ctx context.Context, ref model.ConversationRef) (*model.Message, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// CountUnread counts non-deleted messages in ref not sent by userID and not
	// read by them. A non-nil readIDs is used as the read set; nil means the
	// persisted read rows.
	CountUnread(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, readIDs map[uuid.UUID]struct{}) (int64, error)

	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) (added bool, err error)
	ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]model.MessageReaction, error)
}

// ReadRepository is the read-tracking store
type ReadRepository interface {
	// MarkRead inserts a read row for every unread, non-deleted message in ref
	// not sent by userID. Rows are inserted one at a time; duplicates are
	// skipped and other row failures are joined into the returned error.
	MarkRead(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	IsRead(ctx context.Context, messageID, userID uuid.UUID) (bool, error)
	ReadIDs(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// Store bundles every repository behind one persistence backend
type Store struct {
	Users    UserRepository
	Contacts ContactRepository
	Devices  DeviceRepository
	Chats    ChatRepository
	Groups   GroupRepository
	Messages MessageRepository
	Reads    ReadRepository
}

// NewStore returns the gorm-backed store (PostgreSQL or SQLite).
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Users:    NewUserRepository(db),
		Contacts: NewContactRepository(db),
		Devices:  NewDeviceRepository(db),
		Chats:    NewChatRepository(db),
		Groups:   NewGroupRepository(db),
		Messages: NewMessageRepository(db),
		Reads:    NewReadRepository(db),
	}
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Contact{},
		&model.UserDevice{},
		&model.PushSubscription{},
		&model.Chat{},
		&model.Group{},
		&model.GroupMember{},
		&model.Message{},
		&model.MessageRead{},
		&model.MessageReaction{},
	}
}

// translate maps gorm errors onto apperr kinds and tags them with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// conversationScope filters a messages query to one chat or group.
func conversationScope(ref model.ConversationRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ref.IsChat() {
			return db.Where("messages.chat_id = ?", ref.ID)
		}
		return db.Where("messages.group_id = ?", ref.ID)
	}
}

// activityOrder sorts by last message (never-messaged last), then creation.
const activityOrder = "last_message_at IS NULL, last_message_at DESC, created_at DESC"
