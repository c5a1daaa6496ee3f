package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConversationKind distinguishes 1:1 chats from groups
type ConversationKind string

const (
	ConversationChat  ConversationKind = "chat"
	ConversationGroup ConversationKind = "group"
)

// ConversationRef identifies either a chat or a group. A message belongs to
// exactly one of them.
type ConversationRef struct {
	Kind ConversationKind `json:"kind"`
	ID   uuid.UUID        `json:"id"`
}

func ChatRef(id uuid.UUID) ConversationRef {
	return ConversationRef{Kind: ConversationChat, ID: id}
}

func GroupRef(id uuid.UUID) ConversationRef {
	return ConversationRef{Kind: ConversationGroup, ID: id}
}

func (r ConversationRef) IsChat() bool  { return r.Kind == ConversationChat }
func (r ConversationRef) IsGroup() bool { return r.Kind == ConversationGroup }

func (r ConversationRef) Valid() bool {
	return (r.IsChat() || r.IsGroup()) && r.ID != uuid.Nil
}

// RoomKey is the hub room name for the conversation, e.g. "chat:<id>".
func (r ConversationRef) RoomKey() string {
	return string(r.Kind) + ":" + r.ID.String()
}

func (r ConversationRef) String() string { return r.RoomKey() }

// ParseRoomKey reverses RoomKey.
func ParseRoomKey(key string) (ConversationRef, error) {
	kind, raw, ok := strings.Cut(key, ":")
	if !ok {
		return ConversationRef{}, fmt.Errorf("malformed room key %q", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ConversationRef{}, fmt.Errorf("malformed room key %q: %w", key, err)
	}
	ref := ConversationRef{Kind: ConversationKind(kind), ID: id}
	if !ref.Valid() {
		return ConversationRef{}, fmt.Errorf("malformed room key %q", key)
	}
	return ref, nil
}
