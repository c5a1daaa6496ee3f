package service

import (
	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/model"
)

// toMessageResponse maps a message with its preloaded sender. Reply previews
// and reactions are attached by the caller.
func toMessageResponse(m *model.Message) model.MessageResponse {
	resp := model.MessageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		GroupID:   m.GroupID,
		Sender:    m.Sender.Summary(),
		Kind:      m.Kind,
		Content:   m.Content,
		Reactions: []model.ReactionGroup{},
		CreatedAt: m.CreatedAt,
	}
	if resp.Sender.ID == uuid.Nil {
		resp.Sender.ID = m.SenderID
	}
	if body := m.Body(); body.Media != nil {
		resp.Media = body.Media
	}
	return resp
}

// toReplyPreview resolves exactly one level: the preview never carries its
// own reply.
func toReplyPreview(m *model.Message) *model.ReplyPreview {
	p := &model.ReplyPreview{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Kind:      m.Kind,
		Content:   m.Content,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
	if m.IsDeleted {
		p.Content = ""
	}
	return p
}

// groupReactions folds reaction rows into per-emoji groups, keeping the
// order in which each emoji first appeared.
func groupReactions(rows []model.MessageReaction) map[uuid.UUID][]model.ReactionGroup {
	out := map[uuid.UUID][]model.ReactionGroup{}
	index := map[uuid.UUID]map[string]int{}
	for _, r := range rows {
		if index[r.MessageID] == nil {
			index[r.MessageID] = map[string]int{}
		}
		i, ok := index[r.MessageID][r.Emoji]
		if !ok {
			i = len(out[r.MessageID])
			index[r.MessageID][r.Emoji] = i
			out[r.MessageID] = append(out[r.MessageID], model.ReactionGroup{Emoji: r.Emoji})
		}
		g := &out[r.MessageID][i]
		g.Count++
		g.UserIDs = append(g.UserIDs, r.UserID)
	}
	return out
}

func toGroupMemberResponses(members []model.GroupMember) []model.GroupMemberResponse {
	out := make([]model.GroupMemberResponse, 0, len(members))
	for i := range members {
		user := members[i].User
		summary := user.Summary()
		if summary.ID == uuid.Nil {
			summary.ID = members[i].UserID
		}
		out = append(out, model.GroupMemberResponse{
			User:     summary,
			Role:     members[i].Role,
			JoinedAt: members[i].JoinedAt,
		})
	}
	return out
}
