// Package notification pushes new-message alerts to users who have no live
// connection, through FCM (mobile) and Web Push (browsers).
package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
)

// Preview is the notification body for a message
func Preview(msg *model.MessageResponse) string {
	if msg.Content != "" && msg.Kind == model.MessageKindText {
		return truncate(msg.Content, 120)
	}
	switch msg.Kind {
	case model.MessageKindImage:
		return "Sent a photo"
	case model.MessageKindVideo:
		return "Sent a video"
	case model.MessageKindAudio:
		return "Sent a voice message"
	default:
		if msg.Content != "" {
			return truncate(msg.Content, 120)
		}
		return "Sent an attachment"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// data is the key/value payload both transports carry
func data(sender model.UserSummary, msg *model.MessageResponse) map[string]string {
	d := map[string]string{
		"type":        model.WSEventNewMessage,
		"message_id":  msg.ID.String(),
		"sender_id":   sender.ID.String(),
		"sender_name": sender.Username,
	}
	if msg.ChatID != nil {
		d["chat_id"] = msg.ChatID.String()
	}
	if msg.GroupID != nil {
		d["group_id"] = msg.GroupID.String()
	}
	return d
}

// Notifier is implemented by each transport
type Notifier interface {
	NotifyMessage(ctx context.Context, recipientID uuid.UUID, sender model.UserSummary, msg *model.MessageResponse) error
}

// Multi fans a notification out to every configured transport
type Multi []Notifier

// NewMulti drops nil transports
func NewMulti(ns ...Notifier) Multi {
	var m Multi
	for _, n := range ns {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m Multi) NotifyMessage(ctx context.Context, recipientID uuid.UUID, sender model.UserSummary, msg *model.MessageResponse) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyMessage(ctx, recipientID, sender, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
