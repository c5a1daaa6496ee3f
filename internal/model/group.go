package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is an N:N conversation with role-based membership
type Group struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string     `json:"name" gorm:"size:100;not null"`
	Description   string     `json:"description" gorm:"size:500;default:''"`
	AvatarURL     string     `json:"avatar_url" gorm:"size:500;default:''"`
	CreatedBy     uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`

	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

func (g *Group) Ref() ConversationRef { return GroupRef(g.ID) }

// MemberRole defines the role of a member in a group
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool {
	return r == MemberRoleAdmin || r == MemberRoleMember
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	GroupID  uuid.UUID  `json:"group_id" gorm:"type:uuid;uniqueIndex:idx_group_user;not null"`
	UserID   uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_group_user;not null;index"`
	Role     MemberRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time  `json:"joined_at"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *GroupMember) IsAdmin() bool { return m.Role == MemberRoleAdmin }
