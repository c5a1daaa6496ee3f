package mongostore

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
)

type userDoc struct {
	ID        string     `bson:"_id"`
	Username  string     `bson:"username"`
	Email     string     `bson:"email"`
	Password  string     `bson:"password"`
	AvatarURL string     `bson:"avatar_url"`
	Status    string     `bson:"status"`
	IsOnline  bool       `bson:"is_online"`
	LastSeen  *time.Time `bson:"last_seen,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func newUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		AvatarURL: u.AvatarURL,
		Status:    u.Status,
		IsOnline:  u.IsOnline,
		LastSeen:  u.LastSeen,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (d userDoc) model() model.User {
	return model.User{
		ID:        parseID(d.ID),
		Username:  d.Username,
		Email:     d.Email,
		Password:  d.Password,
		AvatarURL: d.AvatarURL,
		Status:    d.Status,
		IsOnline:  d.IsOnline,
		LastSeen:  d.LastSeen,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type contactDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ContactID string    `bson:"contact_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type deviceDoc struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"user_id"`
	FCMToken     string    `bson:"fcm_token"`
	DeviceType   string    `bson:"device_type"`
	LastActiveAt time.Time `bson:"last_active_at"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d deviceDoc) model() model.UserDevice {
	return model.UserDevice{
		ID:           parseID(d.ID),
		UserID:       parseID(d.UserID),
		FCMToken:     d.FCMToken,
		DeviceType:   d.DeviceType,
		LastActiveAt: d.LastActiveAt,
		CreatedAt:    d.CreatedAt,
	}
}

type subscriptionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Endpoint  string    `bson:"endpoint"`
	P256dh    string    `bson:"p256dh"`
	Auth      string    `bson:"auth"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d subscriptionDoc) model() model.PushSubscription {
	return model.PushSubscription{
		ID:        parseID(d.ID),
		UserID:    parseID(d.UserID),
		Endpoint:  d.Endpoint,
		P256dh:    d.P256dh,
		Auth:      d.Auth,
		CreatedAt: d.CreatedAt,
	}
}

type chatDoc struct {
	ID            string     `bson:"_id"`
	User1ID       string     `bson:"user1_id"`
	User2ID       string     `bson:"user2_id"`
	CreatedAt     time.Time  `bson:"created_at"`
	LastMessageAt *time.Time `bson:"last_message_at"`
}

func (d chatDoc) model() model.Chat {
	return model.Chat{
		ID:            parseID(d.ID),
		User1ID:       parseID(d.User1ID),
		User2ID:       parseID(d.User2ID),
		CreatedAt:     d.CreatedAt,
		LastMessageAt: d.LastMessageAt,
	}
}

type groupDoc struct {
	ID            string     `bson:"_id"`
	Name          string     `bson:"name"`
	Description   string     `bson:"description"`
	AvatarURL     string     `bson:"avatar_url"`
	CreatedBy     string     `bson:"created_by"`
	CreatedAt     time.Time  `bson:"created_at"`
	LastMessageAt *time.Time `bson:"last_message_at"`
}

func (d groupDoc) model() model.Group {
	return model.Group{
		ID:            parseID(d.ID),
		Name:          d.Name,
		Description:   d.Description,
		AvatarURL:     d.AvatarURL,
		CreatedBy:     parseID(d.CreatedBy),
		CreatedAt:     d.CreatedAt,
		LastMessageAt: d.LastMessageAt,
	}
}

type memberDoc struct {
	ID       string    `bson:"_id"`
	GroupID  string    `bson:"group_id"`
	UserID   string    `bson:"user_id"`
	Role     string    `bson:"role"`
	JoinedAt time.Time `bson:"joined_at"`
}

func newMemberDoc(m *model.GroupMember) memberDoc {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Role == "" {
		m.Role = model.MemberRoleMember
	}
	return memberDoc{
		ID:       m.ID.String(),
		GroupID:  m.GroupID.String(),
		UserID:   m.UserID.String(),
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

func (d memberDoc) model() model.GroupMember {
	return model.GroupMember{
		ID:       parseID(d.ID),
		GroupID:  parseID(d.GroupID),
		UserID:   parseID(d.UserID),
		Role:     model.MemberRole(d.Role),
		JoinedAt: d.JoinedAt,
	}
}

type mediaDoc struct {
	URL      string `bson:"url"`
	MimeType string `bson:"mime_type"`
	FileName string `bson:"file_name"`
	FileSize int64  `bson:"file_size"`
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	ChatID    *string   `bson:"chat_id,omitempty"`
	GroupID   *string   `bson:"group_id,omitempty"`
	SenderID  string    `bson:"sender_id"`
	Kind      string    `bson:"kind"`
	Content   string    `bson:"content"`
	Media     *mediaDoc `bson:"media,omitempty"`
	ReplyToID *string   `bson:"reply_to_id,omitempty"`
	IsDeleted bool      `bson:"is_deleted"`
	CreatedAt time.Time `bson:"created_at"`
}

func newMessageDoc(m *model.Message) messageDoc {
	d := messageDoc{
		ID:        m.ID.String(),
		ChatID:    optString(m.ChatID),
		GroupID:   optString(m.GroupID),
		SenderID:  m.SenderID.String(),
		Kind:      string(m.Kind),
		Content:   m.Content,
		ReplyToID: optString(m.ReplyToID),
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
	if !m.Media.IsZero() {
		d.Media = &mediaDoc{
			URL:      m.Media.URL,
			MimeType: m.Media.MimeType,
			FileName: m.Media.FileName,
			FileSize: m.Media.FileSize,
		}
	}
	return d
}

func (d messageDoc) model() model.Message {
	m := model.Message{
		ID:        parseID(d.ID),
		ChatID:    optID(d.ChatID),
		GroupID:   optID(d.GroupID),
		SenderID:  parseID(d.SenderID),
		Kind:      model.MessageKind(d.Kind),
		Content:   d.Content,
		ReplyToID: optID(d.ReplyToID),
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt,
	}
	if d.Media != nil {
		m.Media = model.MediaInfo{
			URL:      d.Media.URL,
			MimeType: d.Media.MimeType,
			FileName: d.Media.FileName,
			FileSize: d.Media.FileSize,
		}
	}
	return m
}

type readDoc struct {
	ID        string    `bson:"_id"`
	MessageID string    `bson:"message_id"`
	UserID    string    `bson:"user_id"`
	ReadAt    time.Time `bson:"read_at"`
}

type reactionDoc struct {
	ID        string    `bson:"_id"`
	MessageID string    `bson:"message_id"`
	UserID    string    `bson:"user_id"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d reactionDoc) model() model.MessageReaction {
	return model.MessageReaction{
		ID:        parseID(d.ID),
		MessageID: parseID(d.MessageID),
		UserID:    parseID(d.UserID),
		Emoji:     d.Emoji,
		CreatedAt: d.CreatedAt,
	}
}
