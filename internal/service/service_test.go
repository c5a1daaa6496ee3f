package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/database"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
)

type sentEvent struct {
	ref     model.ConversationRef
	user    uuid.UUID
	event   model.WSEvent
	exclude uuid.UUID
}

type fakeHub struct {
	mu      sync.Mutex
	room    []sentEvent
	direct  []sentEvent
	evicted []sentEvent
	online  map[uuid.UUID]bool
}

func (h *fakeHub) BroadcastToConversation(ref model.ConversationRef, event model.WSEvent, exclude uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.room = append(h.room, sentEvent{ref: ref, event: event, exclude: exclude})
}

func (h *fakeHub) BroadcastNewMessage(ref model.ConversationRef, msg *model.MessageResponse) {
	h.BroadcastToConversation(ref, model.NewMessageEvent(msg), uuid.Nil)
}

func (h *fakeHub) BroadcastReactionUpdate(ref model.ConversationRef, msg *model.MessageResponse) {
	h.BroadcastToConversation(ref, model.NewReactionEvent(msg), uuid.Nil)
}

func (h *fakeHub) BroadcastMessageDeleted(ref model.ConversationRef, messageID uuid.UUID) {
	h.BroadcastToConversation(ref, model.NewMessageDeletedEvent(ref, messageID), uuid.Nil)
}

func (h *fakeHub) BroadcastMessagesRead(ref model.ConversationRef, reader uuid.UUID, ids []uuid.UUID) {
	h.BroadcastToConversation(ref, model.NewMessagesReadEvent(ref, reader, ids), reader)
}

func (h *fakeHub) SendToUser(userID uuid.UUID, event model.WSEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct = append(h.direct, sentEvent{user: userID, event: event})
}

func (h *fakeHub) EvictUser(ref model.ConversationRef, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evicted = append(h.evicted, sentEvent{ref: ref, user: userID})
}

func (h *fakeHub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

func (h *fakeHub) roomEvents(eventType string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.room {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// stepClock advances one second per call so every row gets a distinct time
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type env struct {
	store    *repository.Store
	hub      *fakeHub
	gate     *AccessGate
	chats    *ChatService
	groups   *GroupService
	messages *MessageService
	users    *UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewStore(db)
	hub := &fakeHub{online: map[uuid.UUID]bool{}}
	clock := &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	gate := NewAccessGate(store.Chats, store.Groups)

	return &env{
		store:    store,
		hub:      hub,
		gate:     gate,
		chats:    NewChatService(store, gate).WithClock(clock.Now),
		groups:   NewGroupService(store, gate, hub).WithClock(clock.Now),
		messages: NewMessageService(store, gate, hub, nil, config.PagingConfig{DefaultTake: 50, MaxTake: 100}).WithClock(clock.Now),
		users:    NewUserService(store),
	}
}

func (e *env) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "x"}
	if err := e.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *env) send(t *testing.T, sender uuid.UUID, ref model.ConversationRef, text string) *model.MessageResponse {
	t.Helper()
	req := model.SendMessageRequest{Content: text}
	id := ref.ID
	if ref.IsChat() {
		req.ChatID = &id
	} else {
		req.GroupID = &id
	}
	resp, err := e.messages.Send(context.Background(), sender, req)
	if err != nil {
		t.Fatalf("Send(%q): %v", text, err)
	}
	return resp
}

func (e *env) group(t *testing.T, admin uuid.UUID, members ...uuid.UUID) *model.GroupResponse {
	t.Helper()
	g, err := e.groups.Create(context.Background(), admin, model.CreateGroupRequest{Name: "team", MemberIDs: members})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func TestGetOrCreateChatIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")

	ab, err := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := e.chats.GetOrCreateChat(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ab.ID != ba.ID {
		t.Fatalf("got chats %s and %s for the same pair", ab.ID, ba.ID)
	}
	if ab.OtherUser.ID != b.ID || ba.OtherUser.ID != a.ID {
		t.Errorf("other user not resolved per caller")
	}

	if _, err := e.chats.GetOrCreateChat(ctx, a.ID, a.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self chat err = %v, want ErrValidation", err)
	}
	if _, err := e.chats.GetOrCreateChat(ctx, a.ID, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown partner err = %v, want ErrNotFound", err)
	}
}

func TestChatScenarioUnreadThenMarkRead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")

	chat, err := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	e.send(t, a.ID, model.ChatRef(chat.ID), "hi")

	list, err := e.chats.ListUserChats(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != chat.ID {
		t.Fatalf("ListUserChats(b) = %+v", list)
	}
	if list[0].LastMessage == nil || list[0].LastMessage.Content != "hi" {
		t.Fatalf("last message = %+v, want hi", list[0].LastMessage)
	}
	if list[0].UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", list[0].UnreadCount)
	}
	if list[0].LastMessageAt == nil {
		t.Error("last_message_at not touched")
	}

	res, err := e.messages.MarkRead(ctx, model.ChatRef(chat.ID), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.MarkedIDs) != 1 || res.UnreadCount != 0 {
		t.Fatalf("MarkRead = %+v, want one id and zero unread", res)
	}
	if got := e.hub.roomEvents(model.WSEventMessagesRead); len(got) != 1 || got[0].exclude != b.ID {
		t.Errorf("messages_read events = %+v", got)
	}
}

func TestMarkReadIsIdempotentAndIgnoresOwnMessages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	ref := model.ChatRef(chat.ID)

	e.send(t, a.ID, ref, "one")
	e.send(t, a.ID, ref, "two")
	e.send(t, b.ID, ref, "mine")

	if n, _ := e.messages.UnreadCount(ctx, ref, b.ID); n != 2 {
		t.Fatalf("unread before = %d, want 2 (own message excluded)", n)
	}

	first, err := e.messages.MarkRead(ctx, ref, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.messages.MarkRead(ctx, ref, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.MarkedIDs) != 2 || len(second.MarkedIDs) != 0 {
		t.Fatalf("marked %d then %d, want 2 then 0", len(first.MarkedIDs), len(second.MarkedIDs))
	}

	readIDs, err := e.store.Reads.ReadIDs(ctx, ref, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(readIDs) != 2 {
		t.Errorf("read rows = %d, want 2", len(readIDs))
	}
	if n, _ := e.messages.UnreadCount(ctx, ref, b.ID); n != 0 {
		t.Errorf("unread after = %d, want 0", n)
	}
}

func TestToggleReactionTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	msg := e.send(t, a.ID, model.ChatRef(chat.ID), "react to me")

	on, err := e.messages.ToggleReaction(ctx, msg.ID, b.ID, "👍")
	if err != nil {
		t.Fatal(err)
	}
	if len(on.Reactions) != 1 || on.Reactions[0].Count != 1 || on.Reactions[0].UserIDs[0] != b.ID {
		t.Fatalf("after first toggle reactions = %+v", on.Reactions)
	}

	off, err := e.messages.ToggleReaction(ctx, msg.ID, b.ID, "👍")
	if err != nil {
		t.Fatal(err)
	}
	if len(off.Reactions) != 0 {
		t.Fatalf("after second toggle reactions = %+v, want none", off.Reactions)
	}
	if got := e.hub.roomEvents(model.WSEventReactionUpdated); len(got) != 2 {
		t.Errorf("reaction events = %d, want 2", len(got))
	}

	if _, err := e.messages.ToggleReaction(ctx, msg.ID, b.ID, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank emoji err = %v, want ErrValidation", err)
	}
}

func TestRemoveMemberRoleGate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin, m, other := e.user(t, "admin"), e.user(t, "member"), e.user(t, "other")
	g := e.group(t, admin.ID, m.ID, other.ID)

	err := e.groups.RemoveMember(ctx, g.ID, m.ID, other.ID)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("member removing other err = %v, want ErrUnauthorized", err)
	}
	if err := e.groups.RemoveMember(ctx, g.ID, m.ID, m.ID); err != nil {
		t.Fatalf("self removal: %v", err)
	}
	if ok, _ := e.gate.IsMember(ctx, g.ID, m.ID); ok {
		t.Error("member still present after leaving")
	}
	if len(e.hub.evicted) != 1 || e.hub.evicted[0].user != m.ID {
		t.Errorf("evicted = %+v, want the leaving member", e.hub.evicted)
	}

	if err := e.groups.RemoveMember(ctx, g.ID, admin.ID, other.ID); err != nil {
		t.Fatalf("admin removal: %v", err)
	}
	if _, err := e.messages.List(ctx, model.GroupRef(g.ID), other.ID, 0, 10); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("removed member listing err = %v, want ErrUnauthorized", err)
	}
}

func TestListNewestFirstAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	ref := model.ChatRef(chat.ID)

	m1 := e.send(t, a.ID, ref, "m1")
	m2 := e.send(t, a.ID, ref, "m2")
	m3 := e.send(t, a.ID, ref, "m3")

	list, err := e.messages.List(ctx, ref, b.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, list, m3.ID, m2.ID, m1.ID)
	if list[0].IsRead {
		t.Error("IsRead should reflect state before listing")
	}
	// listing marked everything read
	if n, _ := e.messages.UnreadCount(ctx, ref, b.ID); n != 0 {
		t.Errorf("unread after listing = %d, want 0", n)
	}

	if err := e.messages.Delete(ctx, m2.ID, b.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("delete by non-sender err = %v, want ErrUnauthorized", err)
	}
	if err := e.messages.Delete(ctx, m2.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	list, err = e.messages.List(ctx, ref, b.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, list, m3.ID, m1.ID)

	if _, err := e.messages.Get(ctx, m2.ID, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get deleted err = %v, want ErrNotFound", err)
	}

	page, err := e.messages.List(ctx, ref, b.ID, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, page, m1.ID)
}

func assertOrder(t *testing.T, got []model.MessageResponse, want ...uuid.UUID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestAddMembersRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin, m, newcomer := e.user(t, "admin"), e.user(t, "member"), e.user(t, "newcomer")
	g := e.group(t, admin.ID, m.ID)

	if _, err := e.groups.AddMembers(ctx, g.ID, m.ID, []uuid.UUID{newcomer.ID}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("member adding err = %v, want ErrUnauthorized", err)
	}
	if ok, _ := e.gate.IsMember(ctx, g.ID, newcomer.ID); ok {
		t.Fatal("newcomer added by a non-admin")
	}

	resp, err := e.groups.AddMembers(ctx, g.ID, admin.ID, []uuid.UUID{newcomer.ID, m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.gate.IsMember(ctx, g.ID, newcomer.ID); !ok {
		t.Fatal("newcomer not a member")
	}
	if len(resp.Members) != 3 {
		t.Errorf("members = %d, want 3 (existing member skipped)", len(resp.Members))
	}
	if isAdmin, _ := e.gate.IsAdmin(ctx, g.ID, newcomer.ID); isAdmin {
		t.Error("added users must join as plain members")
	}

	if err := e.groups.UpdateMemberRole(ctx, g.ID, admin.ID, newcomer.ID, model.MemberRoleAdmin); err != nil {
		t.Fatal(err)
	}
	if isAdmin, _ := e.gate.IsAdmin(ctx, g.ID, newcomer.ID); !isAdmin {
		t.Error("role update not applied")
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b, c := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	other, _ := e.chats.GetOrCreateChat(ctx, a.ID, c.ID)
	g := e.group(t, a.ID, b.ID)

	chatID, groupID := chat.ID, g.ID
	cases := []struct {
		name string
		user uuid.UUID
		req  model.SendMessageRequest
		want error
	}{
		{"no conversation", a.ID, model.SendMessageRequest{Content: "x"}, apperr.ErrValidation},
		{"both conversations", a.ID, model.SendMessageRequest{ChatID: &chatID, GroupID: &groupID, Content: "x"}, apperr.ErrValidation},
		{"empty text", a.ID, model.SendMessageRequest{ChatID: &chatID, Content: "  "}, apperr.ErrValidation},
		{"image without url", a.ID, model.SendMessageRequest{ChatID: &chatID, Kind: model.MessageKindImage}, apperr.ErrValidation},
		{"not a participant", c.ID, model.SendMessageRequest{ChatID: &chatID, Content: "x"}, apperr.ErrUnauthorized},
		{"not a member", c.ID, model.SendMessageRequest{GroupID: &groupID, Content: "x"}, apperr.ErrUnauthorized},
		{"unknown chat", a.ID, model.SendMessageRequest{ChatID: ptr(uuid.New()), Content: "x"}, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.messages.Send(ctx, tc.user, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	elsewhere := e.send(t, a.ID, model.ChatRef(other.ID), "elsewhere")
	_, err := e.messages.Send(ctx, a.ID, model.SendMessageRequest{ChatID: &chatID, Content: "re", ReplyToID: &elsewhere.ID})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("cross-conversation reply err = %v, want ErrValidation", err)
	}

	original := e.send(t, b.ID, model.ChatRef(chat.ID), "question")
	reply, err := e.messages.Send(ctx, a.ID, model.SendMessageRequest{ChatID: &chatID, Content: "answer", ReplyToID: &original.ID})
	if err != nil {
		t.Fatal(err)
	}
	if reply.ReplyTo == nil || reply.ReplyTo.ID != original.ID || reply.ReplyTo.Content != "question" {
		t.Errorf("reply preview = %+v", reply.ReplyTo)
	}
	if got := e.hub.roomEvents(model.WSEventNewMessage); len(got) == 0 || got[len(got)-1].ref != model.ChatRef(chat.ID) {
		t.Errorf("new_message not broadcast to the chat room")
	}

	gone := e.send(t, b.ID, model.ChatRef(chat.ID), "oops")
	if err := e.messages.Delete(ctx, gone.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	_, err = e.messages.Send(ctx, a.ID, model.SendMessageRequest{ChatID: &chatID, Content: "re", ReplyToID: &gone.ID})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("reply to deleted err = %v, want ErrValidation", err)
	}
}

func TestListUserGroupsOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.user(t, "alice")
	quiet := e.group(t, a.ID)
	busy := e.group(t, a.ID)
	newest := e.group(t, a.ID)
	e.send(t, a.ID, model.GroupRef(busy.ID), "hello")

	groups, err := e.groups.ListUserGroups(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	want := []uuid.UUID{busy.ID, newest.ID, quiet.ID}
	for i, id := range want {
		if groups[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, groups[i].ID, id)
		}
	}
	if groups[0].MyRole != model.MemberRoleAdmin || groups[0].UnreadCount != 0 {
		t.Errorf("busy group = %+v", groups[0])
	}
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")

	if _, err := e.users.AddContact(ctx, a.ID, a.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self contact err = %v", err)
	}
	if _, err := e.users.AddContact(ctx, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.users.AddContact(ctx, a.ID, b.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate contact err = %v, want ErrConflict", err)
	}
	list, err := e.users.ListContacts(ctx, a.ID)
	if err != nil || len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("ListContacts = %+v, %v", list, err)
	}

	found, err := e.users.Search(ctx, "BO", a.ID)
	if err != nil || len(found) != 1 || found[0].ID != b.ID {
		t.Errorf("Search = %+v, %v", found, err)
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestRoomEventsCarryNoReadFlag(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	ref := model.ChatRef(chat.ID)

	sent := e.send(t, a.ID, ref, "hi")
	if !sent.IsRead {
		t.Error("sender's own response should be read")
	}
	news := e.hub.roomEvents(model.WSEventNewMessage)
	if len(news) != 1 {
		t.Fatalf("new_message events = %d, want 1", len(news))
	}
	if payload := news[0].event.Payload.(*model.MessageResponse); payload.IsRead {
		t.Error("new_message payload carries the sender's read flag")
	}
	if n, _ := e.messages.UnreadCount(ctx, ref, b.ID); n != 1 {
		t.Fatalf("bob unread = %d, want 1", n)
	}

	if _, err := e.messages.MarkRead(ctx, ref, b.ID); err != nil {
		t.Fatal(err)
	}
	reacted, err := e.messages.ToggleReaction(ctx, sent.ID, b.ID, "🔥")
	if err != nil {
		t.Fatal(err)
	}
	if !reacted.IsRead {
		t.Error("reactor has read the message")
	}
	updates := e.hub.roomEvents(model.WSEventReactionUpdated)
	if len(updates) != 1 {
		t.Fatalf("reaction events = %d, want 1", len(updates))
	}
	payload := updates[0].event.Payload.(*model.MessageResponse)
	if payload.IsRead || len(payload.Reactions) != 1 {
		t.Errorf("reaction payload = %+v", payload)
	}
}

func TestConcurrentMarkRead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.user(t, "alice"), e.user(t, "bob")
	chat, _ := e.chats.GetOrCreateChat(ctx, a.ID, b.ID)
	ref := model.ChatRef(chat.ID)

	const messages = 20
	for i := 0; i < messages; i++ {
		e.send(t, a.ID, ref, "msg")
	}

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		marked = map[uuid.UUID]int{}
		errs   []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.messages.MarkRead(ctx, ref, b.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, id := range res.MarkedIDs {
				marked[id]++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("MarkRead errors: %v", errs)
	}
	if len(marked) != messages {
		t.Errorf("marked %d distinct ids, want %d", len(marked), messages)
	}
	for id, n := range marked {
		if n != 1 {
			t.Errorf("message %s marked %d times", id, n)
		}
	}
	if n, err := e.messages.UnreadCount(ctx, ref, b.ID); err != nil || n != 0 {
		t.Errorf("UnreadCount = %d, %v; want 0", n, err)
	}
	readIDs, err := e.store.Reads.ReadIDs(ctx, ref, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(readIDs) != messages {
		t.Errorf("read rows = %d, want %d", len(readIDs), messages)
	}
}
