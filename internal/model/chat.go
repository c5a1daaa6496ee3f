package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is a 1:1 conversation. The participant pair is stored ordered
// (User1ID < User2ID) so the unique index covers both orderings.
type Chat struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	User1ID       uuid.UUID  `json:"user1_id" gorm:"type:uuid;uniqueIndex:idx_chat_pair;not null"`
	User2ID       uuid.UUID  `json:"user2_id" gorm:"type:uuid;uniqueIndex:idx_chat_pair;not null;index"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`

	User1 User `json:"-" gorm:"foreignKey:User1ID"`
	User2 User `json:"-" gorm:"foreignKey:User2ID"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// OrderedPair returns a and b sorted by their string form.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

// NewChat builds an unsaved chat between a and b.
func NewChat(a, b uuid.UUID, now time.Time) *Chat {
	u1, u2 := OrderedPair(a, b)
	return &Chat{User1ID: u1, User2ID: u2, CreatedAt: now}
}

func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Chat) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

func (c *Chat) Ref() ConversationRef { return ChatRef(c.ID) }
