package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
)

func TestTextBody(t *testing.T) {
	b, err := TextBody("  hello  ")
	if err != nil {
		t.Fatalf("TextBody: %v", err)
	}
	if b.Kind != MessageKindText || b.Text != "hello" || b.Media != nil {
		t.Fatalf("unexpected body %+v", b)
	}

	if _, err := TextBody("   "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank text: got %v, want ErrValidation", err)
	}
	if _, err := TextBody(strings.Repeat("a", MaxTextLength+1)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("long text: got %v, want ErrValidation", err)
	}
}

func TestMediaBody(t *testing.T) {
	media := MediaInfo{URL: "https://cdn.example.com/a.png", MimeType: "image/png", FileName: "a.png", FileSize: 10}

	b, err := MediaBody(MessageKindImage, media, "look")
	if err != nil {
		t.Fatalf("MediaBody: %v", err)
	}
	if b.Media == nil || b.Media.URL != media.URL || b.Text != "look" {
		t.Fatalf("unexpected body %+v", b)
	}

	if _, err := MediaBody(MessageKindVideo, MediaInfo{}, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing url: got %v, want ErrValidation", err)
	}
	if _, err := MediaBody("sticker", media, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown kind: got %v, want ErrValidation", err)
	}
}

func TestSendMessageRequestBody(t *testing.T) {
	media := &MediaInfo{URL: "https://cdn.example.com/a.pdf"}

	tests := []struct {
		name    string
		req     SendMessageRequest
		wantErr bool
		kind    MessageKind
	}{
		{"default kind is text", SendMessageRequest{Content: "hi"}, false, MessageKindText},
		{"text with media", SendMessageRequest{Kind: MessageKindText, Content: "hi", Media: media}, true, ""},
		{"document", SendMessageRequest{Kind: MessageKindDocument, Media: media}, false, MessageKindDocument},
		{"audio without media", SendMessageRequest{Kind: MessageKindAudio}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.req.Body()
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("got %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Body: %v", err)
			}
			if b.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", b.Kind, tt.kind)
			}
		})
	}
}

func TestSendMessageRequestRef(t *testing.T) {
	id := uuid.New()
	if _, ok := (SendMessageRequest{}).Ref(); ok {
		t.Fatal("no target must not resolve")
	}
	if _, ok := (SendMessageRequest{ChatID: &id, GroupID: &id}).Ref(); ok {
		t.Fatal("both targets must not resolve")
	}
	ref, ok := (SendMessageRequest{GroupID: &id}).Ref()
	if !ok || ref != GroupRef(id) {
		t.Fatalf("got %v %v", ref, ok)
	}
}

func TestMessageRefAndBodyRoundTrip(t *testing.T) {
	chatID := uuid.New()
	body, _ := MediaBody(MessageKindImage, MediaInfo{URL: "u"}, "c")
	m := NewMessage(ChatRef(chatID), uuid.New(), body, nil, time.Now())

	if m.GroupID != nil || m.ChatID == nil || *m.ChatID != chatID {
		t.Fatalf("chat xor group violated: %+v", m)
	}
	if m.Ref() != ChatRef(chatID) {
		t.Fatalf("Ref() = %v", m.Ref())
	}
	if got := m.Body(); got.Kind != MessageKindImage || got.Media == nil || got.Media.URL != "u" {
		t.Fatalf("Body() = %+v", got)
	}
}

func TestRoomKey(t *testing.T) {
	ref := GroupRef(uuid.New())
	parsed, err := ParseRoomKey(ref.RoomKey())
	if err != nil {
		t.Fatalf("ParseRoomKey: %v", err)
	}
	if parsed != ref {
		t.Fatalf("got %v, want %v", parsed, ref)
	}
	for _, bad := range []string{"", "chat", "dm:" + uuid.NewString(), "group:xyz"} {
		if _, err := ParseRoomKey(bad); err == nil {
			t.Errorf("ParseRoomKey(%q) succeeded", bad)
		}
	}
}

func TestOrderedPair(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	x1, y1 := OrderedPair(a, b)
	x2, y2 := OrderedPair(b, a)
	if x1 != x2 || y1 != y2 {
		t.Fatal("OrderedPair must not depend on argument order")
	}
	c := NewChat(a, b, time.Now())
	if !c.HasParticipant(a) || !c.HasParticipant(b) || c.HasParticipant(uuid.New()) {
		t.Fatal("HasParticipant mismatch")
	}
	if c.OtherParticipant(a) != b || c.OtherParticipant(b) != a {
		t.Fatal("OtherParticipant mismatch")
	}
}
