package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password. Handlers map it to 401.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Broadcaster is the part of the realtime hub the services push events through.
// Delivery is best effort; none of these calls report failure.
type Broadcaster interface {
	BroadcastNewMessage(ref model.ConversationRef, msg *model.MessageResponse)
	BroadcastReactionUpdate(ref model.ConversationRef, msg *model.MessageResponse)
	BroadcastMessageDeleted(ref model.ConversationRef, messageID uuid.UUID)
	// BroadcastMessagesRead skips the reader's own connections.
	BroadcastMessagesRead(ref model.ConversationRef, reader uuid.UUID, ids []uuid.UUID)
	// BroadcastToConversation sends event to every connection joined to ref.
	// Connections of exclude (if not uuid.Nil) are skipped.
	BroadcastToConversation(ref model.ConversationRef, event model.WSEvent, exclude uuid.UUID)
	SendToUser(userID uuid.UUID, event model.WSEvent)
	// EvictUser removes every connection of userID from ref's room.
	EvictUser(ref model.ConversationRef, userID uuid.UUID)
	IsUserOnline(userID uuid.UUID) bool
}

// Notifier delivers push notifications to users who are not connected.
type Notifier interface {
	NotifyMessage(ctx context.Context, recipientID uuid.UUID, sender model.UserSummary, msg *model.MessageResponse) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastNewMessage(model.ConversationRef, *model.MessageResponse)       {}
func (noopBroadcaster) BroadcastReactionUpdate(model.ConversationRef, *model.MessageResponse)   {}
func (noopBroadcaster) BroadcastMessageDeleted(model.ConversationRef, uuid.UUID)                {}
func (noopBroadcaster) BroadcastMessagesRead(model.ConversationRef, uuid.UUID, []uuid.UUID)     {}
func (noopBroadcaster) BroadcastToConversation(model.ConversationRef, model.WSEvent, uuid.UUID) {}
func (noopBroadcaster) SendToUser(uuid.UUID, model.WSEvent)                                     {}
func (noopBroadcaster) EvictUser(model.ConversationRef, uuid.UUID)                              {}
func (noopBroadcaster) IsUserOnline(uuid.UUID) bool                                             { return false }

func orNoop(b Broadcaster) Broadcaster {
	if b == nil {
		return noopBroadcaster{}
	}
	return b
}

// Clock returns the current time. Services stamp rows with it so tests can
// control ordering.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
