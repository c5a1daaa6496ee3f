package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

// AccessGate answers membership and role questions before any read or write
// touches a conversation.
type AccessGate struct {
	chats  repository.ChatRepository
	groups repository.GroupRepository
}

func NewAccessGate(chats repository.ChatRepository, groups repository.GroupRepository) *AccessGate {
	return &AccessGate{chats: chats, groups: groups}
}

// IsMember reports whether userID belongs to groupID. A missing group or
// membership is false, not an error.
func (g *AccessGate) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	_, err := g.groups.FindMember(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// IsAdmin reports whether userID is an admin of groupID.
func (g *AccessGate) IsAdmin(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := g.groups.FindMember(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.IsAdmin(), nil
}

// AssertChatAccess loads the chat and fails with ErrUnauthorized unless userID
// is one of its participants.
func (g *AccessGate) AssertChatAccess(ctx context.Context, chatID, userID uuid.UUID) (*model.Chat, error) {
	chat, err := g.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, apperr.Unauthorized("not a participant of this chat")
	}
	return chat, nil
}

// AssertGroupAccess loads the group and the caller's membership row.
func (g *AccessGate) AssertGroupAccess(ctx context.Context, groupID, userID uuid.UUID) (*model.Group, *model.GroupMember, error) {
	group, err := g.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	member, err := g.groups.FindMember(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, apperr.Unauthorized("not a member of this group")
	}
	if err != nil {
		return nil, nil, err
	}
	return group, member, nil
}

// AssertGroupAdmin is AssertGroupAccess plus the admin role.
func (g *AccessGate) AssertGroupAdmin(ctx context.Context, groupID, userID uuid.UUID) (*model.Group, error) {
	group, member, err := g.AssertGroupAccess(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, apperr.Unauthorized("group admin role required")
	}
	return group, nil
}

// AssertConversationAccess dispatches on the kind of ref.
func (g *AccessGate) AssertConversationAccess(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) error {
	switch {
	case ref.IsChat():
		_, err := g.AssertChatAccess(ctx, ref.ID, userID)
		return err
	case ref.IsGroup():
		_, _, err := g.AssertGroupAccess(ctx, ref.ID, userID)
		return err
	}
	return apperr.Validation(fmt.Sprintf("unknown conversation kind %q", ref.Kind))
}
