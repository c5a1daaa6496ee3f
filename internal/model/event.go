package model

import "github.com/google/uuid"

// Constructors for the server -> client events. The hub and the services build
// events only through these so payload shapes stay in one place.

func NewMessageEvent(msg *MessageResponse) WSEvent {
	return WSEvent{Type: WSEventNewMessage, Payload: msg}
}

func NewReactionEvent(msg *MessageResponse) WSEvent {
	return WSEvent{Type: WSEventReactionUpdated, Payload: msg}
}

func NewMessageDeletedEvent(ref ConversationRef, messageID uuid.UUID) WSEvent {
	return WSEvent{
		Type:    WSEventMessageDeleted,
		Payload: MessageDeletedEvent{Conversation: ref, MessageID: messageID},
	}
}

func NewMessagesReadEvent(ref ConversationRef, userID uuid.UUID, ids []uuid.UUID) WSEvent {
	return WSEvent{
		Type:    WSEventMessagesRead,
		Payload: MessagesReadEvent{Conversation: ref, UserID: userID, MessageIDs: ids},
	}
}

func NewTypingEvent(ref ConversationRef, userID uuid.UUID, username string, isTyping bool) WSEvent {
	return WSEvent{
		Type: WSEventTyping,
		Payload: TypingEvent{
			Conversation: ref,
			UserID:       userID,
			Username:     username,
			IsTyping:     isTyping,
		},
	}
}

// NewPresenceEvent is user_online or user_offline depending on online
func NewPresenceEvent(userID uuid.UUID, online bool) WSEvent {
	eventType := WSEventOffline
	if online {
		eventType = WSEventOnline
	}
	return WSEvent{Type: eventType, Payload: OnlineEvent{UserID: userID, IsOnline: online}}
}

func NewGroupCreatedEvent(group *GroupResponse) WSEvent {
	return WSEvent{Type: WSEventGroupCreated, Payload: group}
}

func NewMemberRemovedEvent(groupID, userID uuid.UUID) WSEvent {
	return WSEvent{
		Type:    WSEventMemberRemoved,
		Payload: MemberRemovedEvent{GroupID: groupID, UserID: userID},
	}
}

func NewResyncEvent(ref ConversationRef) WSEvent {
	return WSEvent{Type: WSEventResync, Payload: ResyncEvent{Conversation: ref}}
}
