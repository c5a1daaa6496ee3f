package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/database"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"gorm.io/gorm"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	s, _ := newStoreDB(t)
	return s
}

func newStoreDB(t *testing.T) (*repository.Store, *gorm.DB) {
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
	return repository.NewStore(db), db
}

func newUser(t *testing.T, s *repository.Store, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "x"}
	if err := s.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func newText(t *testing.T, s *repository.Store, ref model.ConversationRef, sender uuid.UUID, text string, at time.Time) *model.Message {
	t.Helper()
	body, err := model.TextBody(text)
	if err != nil {
		t.Fatal(err)
	}
	m := model.NewMessage(ref, sender, body, nil, at)
	if err := s.Messages.Create(context.Background(), m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func TestChatPairIsUnordered(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := newUser(t, s, "alice"), newUser(t, s, "bob")

	chat := model.NewChat(b.ID, a.ID, base)
	if err := s.Chats.Create(ctx, chat); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, pair := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		got, err := s.Chats.FindByPair(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("FindByPair: %v", err)
		}
		if got.ID != chat.ID {
			t.Fatalf("FindByPair returned %s, want %s", got.ID, chat.ID)
		}
	}

	dup := model.NewChat(a.ID, b.ID, base)
	if err := s.Chats.Create(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate Create: got %v, want ErrConflict", err)
	}

	if _, err := s.Chats.FindByPair(ctx, a.ID, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing pair: got %v, want ErrNotFound", err)
	}
}

func TestListByUserOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	me := newUser(t, s, "me")
	p1, p2, p3 := newUser(t, s, "p1"), newUser(t, s, "p2"), newUser(t, s, "p3")

	quiet := model.NewChat(me.ID, p1.ID, base)
	older := model.NewChat(me.ID, p2.ID, base.Add(time.Minute))
	newer := model.NewChat(me.ID, p3.ID, base.Add(2*time.Minute))
	for _, c := range []*model.Chat{quiet, older, newer} {
		if err := s.Chats.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Chats.TouchLastMessage(ctx, older.ID, base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Chats.TouchLastMessage(ctx, newer.ID, base.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	// an older timestamp must not move it back
	if err := s.Chats.TouchLastMessage(ctx, newer.ID, base.Add(30*time.Minute)); err != nil {
		t.Fatal(err)
	}

	chats, err := s.Chats.ListByUser(ctx, me.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []uuid.UUID{newer.ID, older.ID, quiet.ID}
	if len(chats) != len(want) {
		t.Fatalf("got %d chats, want %d", len(chats), len(want))
	}
	for i := range want {
		if chats[i].ID != want[i] {
			t.Errorf("chats[%d] = %s, want %s", i, chats[i].ID, want[i])
		}
	}
	if !chats[0].LastMessageAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("LastMessageAt = %v, want %v", chats[0].LastMessageAt, base.Add(2*time.Hour))
	}
}

func TestListByConversationPagesNewestFirstWithoutDeleted(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := newUser(t, s, "alice"), newUser(t, s, "bob")
	chat := model.NewChat(a.ID, b.ID, base)
	if err := s.Chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}

	var msgs []*model.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, newText(t, s, chat.Ref(), a.ID, "m", base.Add(time.Duration(i)*time.Second)))
	}
	if err := s.Messages.SoftDelete(ctx, msgs[3].ID); err != nil {
		t.Fatal(err)
	}

	page, err := s.Messages.ListByConversation(ctx, chat.Ref(), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != msgs[4].ID || page[1].ID != msgs[2].ID {
		t.Fatalf("first page = %v", ids(page))
	}
	if page[0].Sender.Username != "alice" {
		t.Errorf("sender not preloaded: %+v", page[0].Sender)
	}

	page, err = s.Messages.ListByConversation(ctx, chat.Ref(), 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != msgs[1].ID || page[1].ID != msgs[0].ID {
		t.Fatalf("second page = %v", ids(page))
	}

	last, err := s.Messages.LastMessage(ctx, chat.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != msgs[4].ID {
		t.Errorf("LastMessage = %s, want %s", last.ID, msgs[4].ID)
	}

	deleted, err := s.Messages.FindByID(ctx, msgs[3].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.IsDeleted {
		t.Error("soft-deleted row must be kept with IsDeleted set")
	}
}

func TestMarkReadAndCountUnread(t *testing.T) {
	ctx := context.Background()
	s, db := newStoreDB(t)
	a, b := newUser(t, s, "alice"), newUser(t, s, "bob")
	chat := model.NewChat(a.ID, b.ID, base)
	if err := s.Chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}
	ref := chat.Ref()

	m1 := newText(t, s, ref, a.ID, "one", base)
	m2 := newText(t, s, ref, a.ID, "two", base.Add(time.Second))
	m3 := newText(t, s, ref, a.ID, "three", base.Add(2*time.Second))
	newText(t, s, ref, b.ID, "mine", base.Add(3*time.Second))
	if err := s.Messages.SoftDelete(ctx, m3.ID); err != nil {
		t.Fatal(err)
	}

	count, err := s.Messages.CountUnread(ctx, ref, b.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("unread before = %d, want 2 (own and deleted excluded)", count)
	}

	// a read row written by an earlier call is left alone
	if err := db.Create(&model.MessageRead{MessageID: m2.ID, UserID: b.ID, ReadAt: base}).Error; err != nil {
		t.Fatal(err)
	}
	marked, err := s.Reads.MarkRead(ctx, ref, b.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if len(marked) != 1 || marked[0] != m1.ID {
		t.Fatalf("marked = %v, want [%s]", marked, m1.ID)
	}

	again, err := s.Reads.MarkRead(ctx, ref, b.ID, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second MarkRead marked %v, want none", again)
	}

	count, err = s.Messages.CountUnread(ctx, ref, b.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("unread after = %d, want 0", count)
	}

	readIDs, err := s.Reads.ReadIDs(ctx, ref, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(readIDs) != 2 {
		t.Fatalf("ReadIDs = %v", readIDs)
	}
	count, err = s.Messages.CountUnread(ctx, ref, b.ID, readIDs)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("unread with explicit set = %d, want 0", count)
	}
	count, err = s.Messages.CountUnread(ctx, ref, b.ID, map[uuid.UUID]struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("unread with empty set = %d, want 2", count)
	}

	ok, err := s.Reads.IsRead(ctx, m1.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("IsRead(m1) = %v, %v", ok, err)
	}
	ok, err = s.Reads.IsRead(ctx, m1.ID, a.ID)
	if err != nil || ok {
		t.Fatalf("IsRead(m1, sender) = %v, %v", ok, err)
	}
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	owner, m1, m2 := newUser(t, s, "owner"), newUser(t, s, "m1"), newUser(t, s, "m2")

	g := &model.Group{Name: "team", CreatedBy: owner.ID, CreatedAt: base}
	members := []model.GroupMember{
		{UserID: owner.ID, Role: model.MemberRoleAdmin, JoinedAt: base},
		{UserID: m1.ID, Role: model.MemberRoleMember, JoinedAt: base.Add(time.Second)},
	}
	if err := s.Groups.Create(ctx, g, members); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ids, err := s.Groups.GroupIDsForUser(ctx, m1.ID)
	if err != nil || len(ids) != 1 || ids[0] != g.ID {
		t.Fatalf("GroupIDsForUser = %v, %v", ids, err)
	}

	dup := &model.GroupMember{GroupID: g.ID, UserID: m1.ID, Role: model.MemberRoleMember, JoinedAt: base}
	if err := s.Groups.AddMember(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate AddMember: got %v, want ErrConflict", err)
	}
	if err := s.Groups.AddMember(ctx, &model.GroupMember{GroupID: g.ID, UserID: m2.ID, Role: model.MemberRoleMember, JoinedAt: base.Add(2 * time.Second)}); err != nil {
		t.Fatal(err)
	}

	list, err := s.Groups.ListMembers(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].User.Username != "owner" || list[2].User.Username != "m2" {
		t.Fatalf("ListMembers = %+v", list)
	}

	if err := s.Groups.UpdateMemberRole(ctx, g.ID, m2.ID, model.MemberRoleAdmin); err != nil {
		t.Fatal(err)
	}
	mem, err := s.Groups.FindMember(ctx, g.ID, m2.ID)
	if err != nil || !mem.IsAdmin() {
		t.Fatalf("FindMember = %+v, %v", mem, err)
	}

	if err := s.Groups.RemoveMember(ctx, g.ID, m1.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Groups.RemoveMember(ctx, g.ID, m1.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second RemoveMember: got %v, want ErrNotFound", err)
	}
	if _, err := s.Groups.FindMember(ctx, g.ID, m1.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("FindMember after removal: got %v", err)
	}
}

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := newUser(t, s, "alice"), newUser(t, s, "bob")
	chat := model.NewChat(a.ID, b.ID, base)
	if err := s.Chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}
	m := newText(t, s, chat.Ref(), a.ID, "hi", base)

	added, err := s.Messages.ToggleReaction(ctx, m.ID, b.ID, "👍", base)
	if err != nil || !added {
		t.Fatalf("first toggle = %v, %v", added, err)
	}
	if _, err := s.Messages.ToggleReaction(ctx, m.ID, a.ID, "👍", base); err != nil {
		t.Fatal(err)
	}

	reactions, err := s.Messages.ListReactions(ctx, []uuid.UUID{m.ID})
	if err != nil || len(reactions) != 2 {
		t.Fatalf("ListReactions = %v, %v", reactions, err)
	}

	added, err = s.Messages.ToggleReaction(ctx, m.ID, b.ID, "👍", base)
	if err != nil || added {
		t.Fatalf("second toggle = %v, %v", added, err)
	}
	reactions, _ = s.Messages.ListReactions(ctx, []uuid.UUID{m.ID})
	if len(reactions) != 1 || reactions[0].UserID != a.ID {
		t.Fatalf("after toggle off = %+v", reactions)
	}
}

func TestContactsAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := newUser(t, s, "alice"), newUser(t, s, "bobby")
	newUser(t, s, "carol")

	if err := s.Contacts.Add(ctx, &model.Contact{UserID: a.ID, ContactID: b.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.Contacts.Add(ctx, &model.Contact{UserID: a.ID, ContactID: b.ID}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate contact: got %v, want ErrConflict", err)
	}
	list, err := s.Contacts.List(ctx, a.ID)
	if err != nil || len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("List = %v, %v", list, err)
	}

	found, err := s.Users.Search(ctx, "BOB", a.ID, 10)
	if err != nil || len(found) != 1 || found[0].ID != b.ID {
		t.Fatalf("Search = %v, %v", found, err)
	}
	found, _ = s.Users.Search(ctx, "alice", a.ID, 10)
	if len(found) != 0 {
		t.Fatalf("Search must exclude the caller, got %v", found)
	}

	if err := s.Contacts.Remove(ctx, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Contacts.Remove(ctx, a.ID, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second Remove: got %v", err)
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := newUser(t, s, "alice")
	under := newUser(t, s, "snake_case")
	newUser(t, s, "bobby")
	newUser(t, s, "carol")

	if found, err := s.Users.Search(ctx, "%", a.ID, 10); err != nil || len(found) != 0 {
		t.Errorf("Search(%%) = %d users, %v; want none", len(found), err)
	}
	for _, q := range []string{"_", "e_c"} {
		found, err := s.Users.Search(ctx, q, a.ID, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(found) != 1 || found[0].ID != under.ID {
			t.Errorf("Search(%q) = %d users, want only snake_case", q, len(found))
		}
	}
}

func ids(msgs []model.Message) []uuid.UUID {
	out := make([]uuid.UUID, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
