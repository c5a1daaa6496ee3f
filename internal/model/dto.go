package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Auth DTOs ==========

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdateProfileRequest struct {
	Username  string  `json:"username" binding:"omitempty,min=3,max=50"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=500"`
	Status    *string `json:"status" binding:"omitempty,max=140"`
}

// ========== User DTOs ==========

type AddContactRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

// ========== Conversation DTOs ==========

type CreateChatRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type ChatResponse struct {
	ID            uuid.UUID        `json:"id"`
	OtherUser     UserSummary      `json:"other_user"`
	LastMessage   *MessageResponse `json:"last_message"`
	UnreadCount   int64            `json:"unread_count"`
	CreatedAt     time.Time        `json:"created_at"`
	LastMessageAt *time.Time       `json:"last_message_at"`
}

type CreateGroupRequest struct {
	Name        string      `json:"name" binding:"required,max=100"`
	Description string      `json:"description" binding:"max=500"`
	AvatarURL   string      `json:"avatar_url" binding:"max=500"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type AddMembersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1"`
}

type UpdateMemberRoleRequest struct {
	Role MemberRole `json:"role" binding:"required,oneof=admin member"`
}

type GroupMemberResponse struct {
	User     UserSummary `json:"user"`
	Role     MemberRole  `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

type GroupResponse struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	AvatarURL     string                `json:"avatar_url"`
	CreatedBy     uuid.UUID             `json:"created_by"`
	CreatedAt     time.Time             `json:"created_at"`
	LastMessageAt *time.Time            `json:"last_message_at"`
	Members       []GroupMemberResponse `json:"members"`
	MyRole        MemberRole            `json:"my_role"`
	LastMessage   *MessageResponse      `json:"last_message"`
	UnreadCount   int64                 `json:"unread_count"`
}

// ========== Message DTOs ==========

// SendMessageRequest targets exactly one of ChatID and GroupID.
type SendMessageRequest struct {
	ChatID    *uuid.UUID  `json:"chat_id"`
	GroupID   *uuid.UUID  `json:"group_id"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	Media     *MediaInfo  `json:"media"`
	ReplyToID *uuid.UUID  `json:"reply_to_id"`
}

// Ref resolves the target conversation; ok is false unless exactly one id is set.
func (r SendMessageRequest) Ref() (ConversationRef, bool) {
	switch {
	case r.ChatID != nil && r.GroupID == nil:
		return ChatRef(*r.ChatID), true
	case r.GroupID != nil && r.ChatID == nil:
		return GroupRef(*r.GroupID), true
	}
	return ConversationRef{}, false
}

// Body builds the message body. An empty kind means text.
func (r SendMessageRequest) Body() (MessageBody, error) {
	kind := r.Kind
	if kind == "" {
		kind = MessageKindText
	}
	if kind == MessageKindText && r.Media == nil {
		return TextBody(r.Content)
	}
	media := MediaInfo{}
	if r.Media != nil {
		media = *r.Media
	}
	if kind == MessageKindText {
		// text with media attached is rejected by Validate
		b := MessageBody{Kind: kind, Text: r.Content, Media: &media}
		return b, b.Validate()
	}
	return MediaBody(kind, media, r.Content)
}

type MessageListQuery struct {
	Skip int `form:"skip,default=0"`
	Take int `form:"take,default=50"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ReactionGroup aggregates reactions with the same emoji
type ReactionGroup struct {
	Emoji   string      `json:"emoji"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// ReplyPreview is a one-level view of the message being replied to
type ReplyPreview struct {
	ID        uuid.UUID   `json:"id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	IsDeleted bool        `json:"is_deleted"`
	CreatedAt time.Time   `json:"created_at"`
}

type MessageResponse struct {
	ID        uuid.UUID       `json:"id"`
	ChatID    *uuid.UUID      `json:"chat_id,omitempty"`
	GroupID   *uuid.UUID      `json:"group_id,omitempty"`
	Sender    UserSummary     `json:"sender"`
	Kind      MessageKind     `json:"kind"`
	Content   string          `json:"content"`
	Media     *MediaInfo      `json:"media,omitempty"`
	ReplyTo   *ReplyPreview   `json:"reply_to,omitempty"`
	Reactions []ReactionGroup `json:"reactions"`
	IsRead    bool            `json:"is_read,omitempty"` // caller's own view, never set on room events
	CreatedAt time.Time       `json:"created_at"`
}

type MarkReadResponse struct {
	MarkedIDs   []uuid.UUID `json:"marked_ids"`
	UnreadCount int64       `json:"unread_count"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	// server -> client
	WSEventNewMessage      = "new_message"
	WSEventMessageDeleted  = "message_deleted"
	WSEventReactionUpdated = "message_reaction_updated"
	WSEventMessagesRead    = "messages_read"
	WSEventTyping          = "typing"
	WSEventOnline          = "user_online"
	WSEventOffline         = "user_offline"
	WSEventGroupCreated    = "group_created"
	WSEventMemberRemoved   = "group_member_removed"
	WSEventResync          = "resync"
	WSEventError           = "error"

	// client -> server
	WSEventJoinChat   = "join_chat"
	WSEventLeaveChat  = "leave_chat"
	WSEventJoinGroup  = "join_group"
	WSEventLeaveGroup = "leave_group"
	WSEventMarkRead   = "mark_read"
)

// RoomRequest is the payload of join/leave client events. mark_read carries a
// ConversationRef.
type RoomRequest struct {
	ID uuid.UUID `json:"id"`
}

// TypingRequest is the payload of a client typing event
type TypingRequest struct {
	Kind     ConversationKind `json:"kind"`
	ID       uuid.UUID        `json:"id"`
	IsTyping bool             `json:"is_typing"`
}

type TypingEvent struct {
	Conversation ConversationRef `json:"conversation"`
	UserID       uuid.UUID       `json:"user_id"`
	Username     string          `json:"username"`
	IsTyping     bool            `json:"is_typing"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type MessageDeletedEvent struct {
	Conversation ConversationRef `json:"conversation"`
	MessageID    uuid.UUID       `json:"message_id"`
}

type MessagesReadEvent struct {
	Conversation ConversationRef `json:"conversation"`
	UserID       uuid.UUID       `json:"user_id"`
	MessageIDs   []uuid.UUID     `json:"message_ids"`
}

type MemberRemovedEvent struct {
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`
}

type ResyncEvent struct {
	Conversation ConversationRef `json:"conversation"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
