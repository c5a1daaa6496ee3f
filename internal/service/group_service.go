package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

// GroupService handles groups and their membership
type GroupService struct {
	groups   repository.GroupRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	reads    repository.ReadRepository
	gate     *AccessGate
	hub      Broadcaster
	now      Clock
}

func NewGroupService(store *repository.Store, gate *AccessGate, hub Broadcaster) *GroupService {
	return &GroupService{
		groups:   store.Groups,
		users:    store.Users,
		messages: store.Messages,
		reads:    store.Reads,
		gate:     gate,
		hub:      orNoop(hub),
		now:      systemClock,
	}
}

func (s *GroupService) WithClock(now Clock) *GroupService {
	s.now = now
	return s
}

// Create makes a group with the creator as admin and every other listed user
// as a member. Unknown user ids fail the whole request.
func (s *GroupService) Create(ctx context.Context, creatorID uuid.UUID, req model.CreateGroupRequest) (*model.GroupResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}

	memberIDs := dedupe(req.MemberIDs, creatorID)
	if len(memberIDs) > 0 {
		found, err := s.users.FindByIDs(ctx, memberIDs)
		if err != nil {
			return nil, err
		}
		if len(found) != len(memberIDs) {
			return nil, apperr.NotFound("one or more users")
		}
	}

	now := s.now()
	group := &model.Group{
		Name:        name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		CreatedBy:   creatorID,
		CreatedAt:   now,
	}
	members := []model.GroupMember{{UserID: creatorID, Role: model.MemberRoleAdmin, JoinedAt: now}}
	for _, id := range memberIDs {
		members = append(members, model.GroupMember{UserID: id, Role: model.MemberRoleMember, JoinedAt: now})
	}

	if err := s.groups.Create(ctx, group, members); err != nil {
		return nil, err
	}
	logger.Infof("Group %s created by %s with %d members", group.ID, creatorID, len(members))

	resp, err := s.Get(ctx, group.ID, creatorID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID != creatorID {
			s.hub.SendToUser(m.UserID, model.NewGroupCreatedEvent(resp))
		}
	}
	return resp, nil
}

// Get returns the group with its members; only members may read it
func (s *GroupService) Get(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupResponse, error) {
	group, member, err := s.gate.AssertGroupAccess(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, group, member.Role, members, userID)
}

// ListUserGroups returns the caller's groups, most recent activity first
func (s *GroupService) ListUserGroups(ctx context.Context, userID uuid.UUID) ([]model.GroupResponse, error) {
	ids, err := s.groups.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]model.GroupResponse, 0, len(groups))
	for i := range groups {
		members, err := s.groups.ListMembers(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		role := model.MemberRoleMember
		for _, m := range members {
			if m.UserID == userID {
				role = m.Role
			}
		}
		resp, err := s.buildResponse(ctx, &groups[i], role, members, userID)
		if err != nil {
			return nil, err
		}
		result = append(result, *resp)
	}
	return result, nil
}

// AddMembers adds users as plain members. Admin only; users already in the
// group are skipped.
func (s *GroupService) AddMembers(ctx context.Context, groupID, actorID uuid.UUID, userIDs []uuid.UUID) (*model.GroupResponse, error) {
	if _, err := s.gate.AssertGroupAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	ids := dedupe(userIDs, uuid.Nil)
	if len(ids) == 0 {
		return nil, apperr.Validation("no users to add")
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, apperr.NotFound("one or more users")
	}

	added := []uuid.UUID{}
	for _, id := range ids {
		member := &model.GroupMember{GroupID: groupID, UserID: id, Role: model.MemberRoleMember, JoinedAt: s.now()}
		err := s.groups.AddMember(ctx, member)
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		added = append(added, id)
	}

	resp, err := s.Get(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	for _, id := range added {
		s.hub.SendToUser(id, model.NewGroupCreatedEvent(resp))
	}
	return resp, nil
}

// RemoveMember removes targetID from the group. Admins may remove anyone;
// any member may remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, targetID uuid.UUID) error {
	group, actor, err := s.gate.AssertGroupAccess(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actorID != targetID && !actor.IsAdmin() {
		return apperr.Unauthorized("only admins can remove other members")
	}
	if err := s.groups.RemoveMember(ctx, groupID, targetID); err != nil {
		return err
	}

	ref := group.Ref()
	event := model.NewMemberRemovedEvent(groupID, targetID)
	s.hub.BroadcastToConversation(ref, event, uuid.Nil)
	s.hub.SendToUser(targetID, event)
	s.hub.EvictUser(ref, targetID)
	return nil
}

// Leave is RemoveMember on oneself
func (s *GroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.RemoveMember(ctx, groupID, userID, userID)
}

// UpdateMemberRole changes a member's role. Admin only.
func (s *GroupService) UpdateMemberRole(ctx context.Context, groupID, actorID, targetID uuid.UUID, role model.MemberRole) error {
	if !role.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown role %q", role))
	}
	if _, err := s.gate.AssertGroupAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	return s.groups.UpdateMemberRole(ctx, groupID, targetID, role)
}

func (s *GroupService) buildResponse(ctx context.Context, group *model.Group, role model.MemberRole, members []model.GroupMember, userID uuid.UUID) (*model.GroupResponse, error) {
	resp := &model.GroupResponse{
		ID:            group.ID,
		Name:          group.Name,
		Description:   group.Description,
		AvatarURL:     group.AvatarURL,
		CreatedBy:     group.CreatedBy,
		CreatedAt:     group.CreatedAt,
		LastMessageAt: group.LastMessageAt,
		Members:       toGroupMemberResponses(members),
		MyRole:        role,
	}

	last, err := s.messages.LastMessage(ctx, group.Ref())
	switch {
	case err == nil:
		m := toMessageResponse(last)
		resp.LastMessage = &m
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	unread, err := unreadCount(ctx, s.reads, s.messages, group.Ref(), userID)
	if err != nil {
		return nil, err
	}
	resp.UnreadCount = unread
	return resp, nil
}

// dedupe drops duplicates, uuid.Nil and skip
func dedupe(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	out := []uuid.UUID{}
	for _, id := range ids {
		if id == uuid.Nil || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
