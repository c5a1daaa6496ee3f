package ws

import (
	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
)

// BroadcastNewMessage pushes a stored message to everyone joined to ref,
// the sender's other devices included.
func (h *Hub) BroadcastNewMessage(ref model.ConversationRef, msg *model.MessageResponse) {
	h.BroadcastToConversation(ref, model.NewMessageEvent(msg), uuid.Nil)
}

// BroadcastTyping relays a typing signal to the room without echoing it back
// to the typist.
func (h *Hub) BroadcastTyping(ref model.ConversationRef, userID uuid.UUID, username string, isTyping bool) {
	h.BroadcastToConversation(ref, model.NewTypingEvent(ref, userID, username, isTyping), userID)
}

func (h *Hub) BroadcastReactionUpdate(ref model.ConversationRef, msg *model.MessageResponse) {
	h.BroadcastToConversation(ref, model.NewReactionEvent(msg), uuid.Nil)
}

func (h *Hub) BroadcastMessageDeleted(ref model.ConversationRef, messageID uuid.UUID) {
	h.BroadcastToConversation(ref, model.NewMessageDeletedEvent(ref, messageID), uuid.Nil)
}

// BroadcastMessagesRead tells the other participants which messages reader
// has just seen.
func (h *Hub) BroadcastMessagesRead(ref model.ConversationRef, reader uuid.UUID, ids []uuid.UUID) {
	h.BroadcastToConversation(ref, model.NewMessagesReadEvent(ref, reader, ids), reader)
}

// BroadcastPresence goes to every connection, not just shared rooms.
func (h *Hub) BroadcastPresence(userID uuid.UUID, online bool) {
	h.BroadcastAll(model.NewPresenceEvent(userID, online))
}
