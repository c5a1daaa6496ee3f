package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

const (
	maxEmojiBytes = 32
	notifyTimeout = 10 * time.Second
)

// MessageService handles sending, listing, read tracking and reactions
type MessageService struct {
	messages repository.MessageRepository
	reads    repository.ReadRepository
	chats    repository.ChatRepository
	groups   repository.GroupRepository
	users    repository.UserRepository
	gate     *AccessGate
	hub      Broadcaster
	notifier Notifier
	paging   config.PagingConfig
	now      Clock
}

func NewMessageService(store *repository.Store, gate *AccessGate, hub Broadcaster, notifier Notifier, paging config.PagingConfig) *MessageService {
	if paging.DefaultTake <= 0 {
		paging.DefaultTake = 50
	}
	if paging.MaxTake < paging.DefaultTake {
		paging.MaxTake = paging.DefaultTake
	}
	return &MessageService{
		messages: store.Messages,
		reads:    store.Reads,
		chats:    store.Chats,
		groups:   store.Groups,
		users:    store.Users,
		gate:     gate,
		hub:      orNoop(hub),
		notifier: notifier,
		paging:   paging,
		now:      systemClock,
	}
}

func (s *MessageService) WithClock(now Clock) *MessageService {
	s.now = now
	return s
}

// Send stores a message and then fans it out. The message is durable before
// any broadcast or push is attempted.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req model.SendMessageRequest) (*model.MessageResponse, error) {
	ref, ok := req.Ref()
	if !ok {
		return nil, apperr.Validation("exactly one of chat_id and group_id is required")
	}
	body, err := req.Body()
	if err != nil {
		return nil, err
	}
	if err := s.gate.AssertConversationAccess(ctx, ref, senderID); err != nil {
		return nil, err
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	var reply *model.Message
	if req.ReplyToID != nil {
		reply, err = s.messages.FindByID(ctx, *req.ReplyToID)
		if err != nil {
			return nil, err
		}
		if reply.Ref() != ref {
			return nil, apperr.Validation("reply target belongs to another conversation")
		}
		if reply.IsDeleted {
			return nil, apperr.Validation("cannot reply to a deleted message")
		}
	}

	msg := model.NewMessage(ref, senderID, body, req.ReplyToID, s.now())
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = *sender
	s.touch(ctx, ref, msg.CreatedAt)

	resp := toMessageResponse(msg)
	resp.IsRead = true
	if reply != nil {
		resp.ReplyTo = toReplyPreview(reply)
	}

	s.hub.BroadcastNewMessage(ref, forRoom(&resp))
	s.notifyOffline(ctx, ref, sender, forRoom(&resp))
	return &resp, nil
}

// touch moves the conversation's last-message time. The message is already
// stored, so a failure here is only logged.
func (s *MessageService) touch(ctx context.Context, ref model.ConversationRef, at time.Time) {
	var err error
	if ref.IsChat() {
		err = s.chats.TouchLastMessage(ctx, ref.ID, at)
	} else {
		err = s.groups.TouchLastMessage(ctx, ref.ID, at)
	}
	if err != nil {
		logger.Errorf("touch last message on %s: %v", ref, err)
	}
}

func (s *MessageService) notifyOffline(ctx context.Context, ref model.ConversationRef, sender *model.User, resp *model.MessageResponse) {
	if s.notifier == nil {
		return
	}
	recipients, err := s.recipients(ctx, ref, sender.ID)
	if err != nil {
		logger.Warnf("resolve push recipients for %s: %v", ref, err)
		return
	}
	summary := sender.Summary()
	for _, id := range recipients {
		if s.hub.IsUserOnline(id) {
			continue
		}
		go func(recipientID uuid.UUID) {
			pushCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyMessage(pushCtx, recipientID, summary, resp); err != nil {
				logger.Warnf("push to %s failed: %v", recipientID, err)
			}
		}(id)
	}
}

func (s *MessageService) recipients(ctx context.Context, ref model.ConversationRef, senderID uuid.UUID) ([]uuid.UUID, error) {
	if ref.IsChat() {
		chat, err := s.chats.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{chat.OtherParticipant(senderID)}, nil
	}
	members, err := s.groups.ListMembers(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.UserID != senderID {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

// List pages a conversation newest first and marks it read for the caller.
// IsRead on each message reflects the state before this call.
func (s *MessageService) List(ctx context.Context, ref model.ConversationRef, userID uuid.UUID, skip, take int) ([]model.MessageResponse, error) {
	if err := s.gate.AssertConversationAccess(ctx, ref, userID); err != nil {
		return nil, err
	}
	skip, take = s.clamp(skip, take)

	msgs, err := s.messages.ListByConversation(ctx, ref, skip, take)
	if err != nil {
		return nil, err
	}
	readIDs, err := s.reads.ReadIDs(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.enrich(ctx, msgs, userID, readIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.markRead(ctx, ref, userID); err != nil {
		logger.Warnf("mark read while listing %s: %v", ref, err)
	}
	return result, nil
}

func (s *MessageService) clamp(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = s.paging.DefaultTake
	}
	if take > s.paging.MaxTake {
		take = s.paging.MaxTake
	}
	return skip, take
}

// Get returns one visible message from a conversation the caller can read
func (s *MessageService) Get(ctx context.Context, messageID, userID uuid.UUID) (*model.MessageResponse, error) {
	msg, err := s.visibleMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	readIDs, err := s.reads.ReadIDs(ctx, msg.Ref(), userID)
	if err != nil {
		return nil, err
	}
	result, err := s.enrich(ctx, []model.Message{*msg}, userID, readIDs)
	if err != nil {
		return nil, err
	}
	return &result[0], nil
}

func (s *MessageService) visibleMessage(ctx context.Context, messageID, userID uuid.UUID) (*model.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, apperr.NotFound("message")
	}
	if err := s.gate.AssertConversationAccess(ctx, msg.Ref(), userID); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead marks every unread message in ref as read for the caller and
// returns the newly marked ids with the remaining unread count.
func (s *MessageService) MarkRead(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) (*model.MarkReadResponse, error) {
	if err := s.gate.AssertConversationAccess(ctx, ref, userID); err != nil {
		return nil, err
	}
	marked, err := s.markRead(ctx, ref, userID)
	if err != nil && len(marked) == 0 {
		return nil, err
	}
	if err != nil {
		// rows that failed stay unread and are picked up by the next call
		logger.Warnf("partial mark read on %s: %v", ref, err)
	}

	unread, err := unreadCount(ctx, s.reads, s.messages, ref, userID)
	if err != nil {
		return nil, err
	}
	return &model.MarkReadResponse{MarkedIDs: marked, UnreadCount: unread}, nil
}

func (s *MessageService) markRead(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) ([]uuid.UUID, error) {
	marked, err := s.reads.MarkRead(ctx, ref, userID, s.now())
	if len(marked) > 0 {
		s.hub.BroadcastMessagesRead(ref, userID, marked)
	}
	if marked == nil {
		marked = []uuid.UUID{}
	}
	return marked, err
}

// UnreadCount returns how many messages in ref the caller has not read
func (s *MessageService) UnreadCount(ctx context.Context, ref model.ConversationRef, userID uuid.UUID) (int64, error) {
	if err := s.gate.AssertConversationAccess(ctx, ref, userID); err != nil {
		return 0, err
	}
	return unreadCount(ctx, s.reads, s.messages, ref, userID)
}

// Delete soft-deletes a message. Only its sender may delete it.
func (s *MessageService) Delete(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.visibleMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return apperr.Unauthorized("only the sender can delete a message")
	}
	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastMessageDeleted(msg.Ref(), messageID)
	return nil
}

// ToggleReaction adds the caller's emoji to a message, or removes it when
// already present.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*model.MessageResponse, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiBytes {
		return nil, apperr.Validation("emoji must be 1 to 32 bytes")
	}
	msg, err := s.visibleMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.ToggleReaction(ctx, messageID, userID, emoji, s.now()); err != nil {
		return nil, err
	}

	readIDs, err := s.reads.ReadIDs(ctx, msg.Ref(), userID)
	if err != nil {
		return nil, err
	}
	result, err := s.enrich(ctx, []model.Message{*msg}, userID, readIDs)
	if err != nil {
		return nil, err
	}
	resp := &result[0]
	s.hub.BroadcastReactionUpdate(msg.Ref(), forRoom(resp))
	return resp, nil
}

// forRoom copies resp without the caller's read flag, which does not hold for
// the other members of the room.
func forRoom(resp *model.MessageResponse) *model.MessageResponse {
	out := *resp
	out.IsRead = false
	return &out
}

// enrich builds responses with reactions, one-level reply previews and the
// caller's read flag. Own messages count as read.
func (s *MessageService) enrich(ctx context.Context, msgs []model.Message, userID uuid.UUID, readIDs map[uuid.UUID]struct{}) ([]model.MessageResponse, error) {
	result := make([]model.MessageResponse, 0, len(msgs))
	if len(msgs) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(msgs))
	replyIDs := []uuid.UUID{}
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		if msgs[i].ReplyToID != nil {
			replyIDs = append(replyIDs, *msgs[i].ReplyToID)
		}
	}

	reactions, err := s.messages.ListReactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	grouped := groupReactions(reactions)

	replies := map[uuid.UUID]*model.Message{}
	if len(replyIDs) > 0 {
		found, err := s.messages.FindByIDs(ctx, replyIDs)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		for i := range found {
			replies[found[i].ID] = &found[i]
		}
	}

	for i := range msgs {
		resp := toMessageResponse(&msgs[i])
		if g, ok := grouped[msgs[i].ID]; ok {
			resp.Reactions = g
		}
		if msgs[i].ReplyToID != nil {
			if target, ok := replies[*msgs[i].ReplyToID]; ok {
				resp.ReplyTo = toReplyPreview(target)
			}
		}
		if msgs[i].SenderID == userID {
			resp.IsRead = true
		} else {
			_, resp.IsRead = readIDs[msgs[i].ID]
		}
		result = append(result, resp)
	}
	return result, nil
}
