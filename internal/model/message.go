package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"gorm.io/gorm"
)

// MessageKind defines the type of message content
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindImage    MessageKind = "image"
	MessageKindVideo    MessageKind = "video"
	MessageKindAudio    MessageKind = "audio"
	MessageKindDocument MessageKind = "document"
)

const MaxTextLength = 4000

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindVideo, MessageKindAudio, MessageKindDocument:
		return true
	}
	return false
}

func (k MessageKind) IsMedia() bool { return k.Valid() && k != MessageKindText }

// MessageBody is the content of a message: plain text, or a media reference
// with an optional caption. Build it with TextBody or MediaBody.
type MessageBody struct {
	Kind  MessageKind
	Text  string
	Media *MediaInfo
}

// TextBody returns a text body. Blank text is rejected.
func TextBody(text string) (MessageBody, error) {
	b := MessageBody{Kind: MessageKindText, Text: strings.TrimSpace(text)}
	return b, b.Validate()
}

// MediaBody returns a media body of the given kind with an optional caption.
func MediaBody(kind MessageKind, media MediaInfo, caption string) (MessageBody, error) {
	b := MessageBody{Kind: kind, Text: strings.TrimSpace(caption), Media: &media}
	return b, b.Validate()
}

func (b MessageBody) Validate() error {
	if !b.Kind.Valid() {
		return apperr.Validation("unknown message kind " + string(b.Kind))
	}
	if utf8.RuneCountInString(b.Text) > MaxTextLength {
		return apperr.Validation("message text too long")
	}
	if b.Kind == MessageKindText {
		if b.Media != nil {
			return apperr.Validation("text message cannot carry media")
		}
		if b.Text == "" {
			return apperr.Validation("message text is empty")
		}
		return nil
	}
	if b.Media == nil || strings.TrimSpace(b.Media.URL) == "" {
		return apperr.Validation(string(b.Kind) + " message requires a media url")
	}
	return nil
}

// Message represents a chat or group message. Exactly one of ChatID and
// GroupID is set.
type Message struct {
	ID        uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ChatID    *uuid.UUID  `json:"chat_id,omitempty" gorm:"type:uuid;index:idx_messages_chat_created,priority:1"`
	GroupID   *uuid.UUID  `json:"group_id,omitempty" gorm:"type:uuid;index:idx_messages_group_created,priority:1"`
	SenderID  uuid.UUID   `json:"sender_id" gorm:"type:uuid;index;not null"`
	Kind      MessageKind `json:"kind" gorm:"type:varchar(20);not null;default:'text'"`
	Content   string      `json:"content" gorm:"type:text"`
	Media     MediaInfo   `json:"media" gorm:"embedded;embeddedPrefix:media_"`
	ReplyToID *uuid.UUID  `json:"reply_to_id,omitempty" gorm:"type:uuid"`
	IsDeleted bool        `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt time.Time   `json:"created_at" gorm:"index:idx_messages_chat_created,priority:2;index:idx_messages_group_created,priority:2"`

	Sender User `json:"-" gorm:"foreignKey:SenderID"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// NewMessage builds an unsaved message in ref.
func NewMessage(ref ConversationRef, senderID uuid.UUID, body MessageBody, replyTo *uuid.UUID, now time.Time) *Message {
	m := &Message{
		SenderID:  senderID,
		ReplyToID: replyTo,
		CreatedAt: now,
	}
	m.SetRef(ref)
	m.SetBody(body)
	return m
}

func (m *Message) SetRef(ref ConversationRef) {
	id := ref.ID
	m.ChatID, m.GroupID = nil, nil
	if ref.IsChat() {
		m.ChatID = &id
	} else {
		m.GroupID = &id
	}
}

// Ref returns the conversation the message belongs to.
func (m *Message) Ref() ConversationRef {
	if m.ChatID != nil {
		return ChatRef(*m.ChatID)
	}
	if m.GroupID != nil {
		return GroupRef(*m.GroupID)
	}
	return ConversationRef{}
}

func (m *Message) SetBody(b MessageBody) {
	m.Kind = b.Kind
	m.Content = b.Text
	m.Media = MediaInfo{}
	if b.Media != nil {
		m.Media = *b.Media
	}
}

func (m *Message) Body() MessageBody {
	b := MessageBody{Kind: m.Kind, Text: m.Content}
	if m.Kind.IsMedia() {
		media := m.Media
		b.Media = &media
	}
	return b
}

// MessageRead records that a user has read a message. Rows are only ever
// inserted.
type MessageRead struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;uniqueIndex:idx_read_message_user;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_read_message_user;not null;index"`
	ReadAt    time.Time `json:"read_at" gorm:"not null"`
}

func (r *MessageRead) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// MessageReaction is one user's emoji on a message
type MessageReaction struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;uniqueIndex:idx_reaction_unique;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_reaction_unique;not null"`
	Emoji     string    `json:"emoji" gorm:"size:32;uniqueIndex:idx_reaction_unique;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
