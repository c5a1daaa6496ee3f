package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

// ChatService handles the 1:1 half of the conversation directory
type ChatService struct {
	chats    repository.ChatRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	reads    repository.ReadRepository
	gate     *AccessGate
	now      Clock
}

func NewChatService(store *repository.Store, gate *AccessGate) *ChatService {
	return &ChatService{
		chats:    store.Chats,
		users:    store.Users,
		messages: store.Messages,
		reads:    store.Reads,
		gate:     gate,
		now:      systemClock,
	}
}

// WithClock replaces the time source
func (s *ChatService) WithClock(now Clock) *ChatService {
	s.now = now
	return s
}

// GetOrCreateChat returns the chat between me and other, creating it on first
// use. The pair is unordered.
func (s *ChatService) GetOrCreateChat(ctx context.Context, me, other uuid.UUID) (*model.ChatResponse, error) {
	if me == other {
		return nil, apperr.Validation("cannot open a chat with yourself")
	}
	otherUser, err := s.users.FindByID(ctx, other)
	if err != nil {
		return nil, err
	}

	chat, err := s.chats.FindByPair(ctx, me, other)
	if errors.Is(err, apperr.ErrNotFound) {
		chat = model.NewChat(me, other, s.now())
		err = s.chats.Create(ctx, chat)
		if errors.Is(err, apperr.ErrConflict) {
			// created concurrently by the other participant
			chat, err = s.chats.FindByPair(ctx, me, other)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.buildResponse(ctx, chat, me, otherUser)
}

// ListUserChats returns the caller's chats, most recent activity first
func (s *ChatService) ListUserChats(ctx context.Context, userID uuid.UUID) ([]model.ChatResponse, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]uuid.UUID, 0, len(chats))
	for i := range chats {
		otherIDs = append(otherIDs, chats[i].OtherParticipant(userID))
	}
	users, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	result := make([]model.ChatResponse, 0, len(chats))
	for i := range chats {
		other := byID[chats[i].OtherParticipant(userID)]
		if other == nil {
			other = &model.User{ID: chats[i].OtherParticipant(userID)}
		}
		resp, err := s.buildResponse(ctx, &chats[i], userID, other)
		if err != nil {
			return nil, err
		}
		result = append(result, *resp)
	}
	return result, nil
}

// GetChat returns one chat the caller participates in
func (s *ChatService) GetChat(ctx context.Context, chatID, userID uuid.UUID) (*model.ChatResponse, error) {
	chat, err := s.gate.AssertChatAccess(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	other, err := s.users.FindByID(ctx, chat.OtherParticipant(userID))
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, chat, userID, other)
}

func (s *ChatService) buildResponse(ctx context.Context, chat *model.Chat, userID uuid.UUID, other *model.User) (*model.ChatResponse, error) {
	resp := &model.ChatResponse{
		ID:            chat.ID,
		OtherUser:     other.Summary(),
		CreatedAt:     chat.CreatedAt,
		LastMessageAt: chat.LastMessageAt,
	}

	last, err := s.messages.LastMessage(ctx, chat.Ref())
	switch {
	case err == nil:
		m := toMessageResponse(last)
		resp.LastMessage = &m
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	unread, err := unreadCount(ctx, s.reads, s.messages, chat.Ref(), userID)
	if err != nil {
		return nil, err
	}
	resp.UnreadCount = unread
	return resp, nil
}

// unreadCount fetches the caller's read set first and passes it to the counter
func unreadCount(ctx context.Context, reads repository.ReadRepository, messages repository.MessageRepository, ref model.ConversationRef, userID uuid.UUID) (int64, error) {
	readIDs, err := reads.ReadIDs(ctx, ref, userID)
	if err != nil {
		return 0, err
	}
	n, err := messages.CountUnread(ctx, ref, userID, readIDs)
	if err != nil {
		logger.Errorf("count unread %s for %s: %v", ref, userID, err)
		return 0, err
	}
	return n, nil
}
