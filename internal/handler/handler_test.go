package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/database"
	"github.com/quocanhngo/talkhub/internal/middleware"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"github.com/quocanhngo/talkhub/internal/service"
	"github.com/quocanhngo/talkhub/internal/ws"
	"github.com/quocanhngo/talkhub/pkg/auth"
	"github.com/quocanhngo/talkhub/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStorage struct{}

func (fakeStorage) Upload(_ context.Context, _ multipart.File, header *multipart.FileHeader, folder string) (*storage.UploadResult, error) {
	return &storage.UploadResult{
		URL:      "https://cdn.test/" + folder + "/" + header.Filename,
		Key:      folder + "/" + header.Filename,
		FileName: header.Filename,
		FileSize: header.Size,
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}

type testServer struct {
	router *gin.Engine
	hub    *ws.Hub
}

func newTestServer(t *testing.T) *testServer {
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
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	hub := ws.NewHub(nil, "", nil)
	gate := service.NewAccessGate(store.Chats, store.Groups)
	messageService := service.NewMessageService(store, gate, hub, nil, config.PagingConfig{DefaultTake: 50, MaxTake: 100})

	hs := &Handlers{
		Auth:    NewAuthHandler(service.NewAuthService(store.Users, jwtManager, nil), fakeStorage{}),
		Users:   NewUserHandler(service.NewUserService(store)),
		Chats:   NewChatHandler(service.NewChatService(store, gate)),
		Groups:  NewGroupHandler(service.NewGroupService(store, gate, hub)),
		Message: NewMessageHandler(messageService),
		Upload:  NewUploadHandler(fakeStorage{}),
		WS:      NewWSHandler(hub, gate, messageService, jwtManager, nil, ws.Options{}),
	}
	router := gin.New()
	hs.Register(router, middleware.AuthMiddleware(jwtManager, nil))
	return &testServer{router: router, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d: %s", w.Code, want, w.Body.String())
	}
}

func (s *testServer) register(t *testing.T, name string) model.LoginResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", model.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret1",
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[model.LoginResponse](t, w)
}

func TestChatFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.register(t, "alice"), s.register(t, "bob")

	w := s.do(t, http.MethodPost, "/api/v1/chats", alice.Token, model.CreateChatRequest{UserID: bob.User.ID})
	expectStatus(t, w, http.StatusOK)
	chat := decode[model.ChatResponse](t, w)
	if chat.OtherUser.ID != bob.User.ID {
		t.Fatalf("other user = %v", chat.OtherUser.ID)
	}

	// bob opening the chat from his side gets the same one
	w = s.do(t, http.MethodPost, "/api/v1/chats", bob.Token, model.CreateChatRequest{UserID: alice.User.ID})
	expectStatus(t, w, http.StatusOK)
	if got := decode[model.ChatResponse](t, w); got.ID != chat.ID {
		t.Fatalf("second GetOrCreate returned %v, want %v", got.ID, chat.ID)
	}

	w = s.do(t, http.MethodPost, "/api/v1/messages", alice.Token, model.SendMessageRequest{ChatID: &chat.ID, Content: "hi bob"})
	expectStatus(t, w, http.StatusCreated)
	sent := decode[model.MessageResponse](t, w)
	if sent.Sender.ID != alice.User.ID || sent.Content != "hi bob" || !sent.IsRead {
		t.Fatalf("sent = %+v", sent)
	}

	w = s.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID.String()+"/unread", bob.Token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[model.UnreadCountResponse](t, w); got.UnreadCount != 1 {
		t.Fatalf("bob unread = %d, want 1", got.UnreadCount)
	}

	w = s.do(t, http.MethodGet, "/api/v1/chats", bob.Token, nil)
	expectStatus(t, w, http.StatusOK)
	chats := decode[[]model.ChatResponse](t, w)
	if len(chats) != 1 || chats[0].UnreadCount != 1 || chats[0].LastMessage == nil || chats[0].LastMessage.ID != sent.ID {
		t.Fatalf("bob chats = %+v", chats)
	}

	w = s.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID.String()+"/messages?skip=0&take=10", bob.Token, nil)
	expectStatus(t, w, http.StatusOK)
	msgs := decode[[]model.MessageResponse](t, w)
	if len(msgs) != 1 || msgs[0].IsRead {
		t.Fatalf("bob messages = %+v", msgs)
	}

	// listing marked the chat read
	w = s.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID.String()+"/unread", bob.Token, nil)
	if got := decode[model.UnreadCountResponse](t, w); got.UnreadCount != 0 {
		t.Fatalf("bob unread after listing = %d", got.UnreadCount)
	}

	w = s.do(t, http.MethodPost, "/api/v1/messages/"+sent.ID.String()+"/reactions", bob.Token, model.ReactionRequest{Emoji: "👍"})
	expectStatus(t, w, http.StatusOK)
	reacted := decode[model.MessageResponse](t, w)
	if len(reacted.Reactions) != 1 || reacted.Reactions[0].Count != 1 {
		t.Fatalf("reactions = %+v", reacted.Reactions)
	}

	w = s.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID.String()+"/read", bob.Token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[model.MarkReadResponse](t, w); len(got.MarkedIDs) != 0 || got.UnreadCount != 0 {
		t.Fatalf("second mark read = %+v", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	alice, bob, carol := s.register(t, "alice"), s.register(t, "bob"), s.register(t, "carol")

	w := s.do(t, http.MethodPost, "/api/v1/chats", alice.Token, model.CreateChatRequest{UserID: bob.User.ID})
	chat := decode[model.ChatResponse](t, w)
	chatPath := "/api/v1/chats/" + chat.ID.String()
	groupID := uuid.New()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/chats", "", nil, http.StatusUnauthorized},
		{"non participant lists", http.MethodGet, chatPath + "/messages", carol.Token, nil, http.StatusForbidden},
		{"non participant sends", http.MethodPost, "/api/v1/messages", carol.Token, model.SendMessageRequest{ChatID: &chat.ID, Content: "x"}, http.StatusForbidden},
		{"malformed id", http.MethodGet, "/api/v1/chats/not-a-uuid", alice.Token, nil, http.StatusBadRequest},
		{"unknown message", http.MethodGet, "/api/v1/messages/" + uuid.NewString(), alice.Token, nil, http.StatusNotFound},
		{"both targets", http.MethodPost, "/api/v1/messages", alice.Token, model.SendMessageRequest{ChatID: &chat.ID, GroupID: &groupID, Content: "x"}, http.StatusBadRequest},
		{"empty text", http.MethodPost, "/api/v1/messages", alice.Token, model.SendMessageRequest{ChatID: &chat.ID}, http.StatusBadRequest},
		{"chat with self", http.MethodPost, "/api/v1/chats", alice.Token, model.CreateChatRequest{UserID: alice.User.ID}, http.StatusBadRequest},
		{"chat with unknown user", http.MethodPost, "/api/v1/chats", alice.Token, model.CreateChatRequest{UserID: uuid.New()}, http.StatusNotFound},
		{"wrong password", http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: "alice@example.com", Password: "wrong-pass"}, http.StatusUnauthorized},
		{"duplicate register", http.MethodPost, "/api/v1/auth/register", "", model.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, tt.body)
			expectStatus(t, w, tt.status)
		})
	}
}

func TestGroupMembershipRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.register(t, "alice"), s.register(t, "bob")

	w := s.do(t, http.MethodPost, "/api/v1/groups", alice.Token, model.CreateGroupRequest{Name: "team", MemberIDs: []uuid.UUID{bob.User.ID}})
	expectStatus(t, w, http.StatusCreated)
	group := decode[model.GroupResponse](t, w)
	if group.MyRole != model.MemberRoleAdmin || len(group.Members) != 2 {
		t.Fatalf("group = %+v", group)
	}
	groupPath := "/api/v1/groups/" + group.ID.String()

	w = s.do(t, http.MethodPost, "/api/v1/messages", bob.Token, model.SendMessageRequest{GroupID: &group.ID, Content: "hello team"})
	expectStatus(t, w, http.StatusCreated)

	w = s.do(t, http.MethodGet, groupPath+"/unread", alice.Token, nil)
	if got := decode[model.UnreadCountResponse](t, w); got.UnreadCount != 1 {
		t.Fatalf("alice unread = %d", got.UnreadCount)
	}

	w = s.do(t, http.MethodDelete, groupPath+"/members/"+alice.User.ID.String(), bob.Token, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = s.do(t, http.MethodDelete, groupPath+"/members/"+bob.User.ID.String(), alice.Token, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, groupPath, bob.Token, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = s.do(t, http.MethodGet, "/api/v1/groups", bob.Token, nil)
	expectStatus(t, w, http.StatusOK)
	if groups := decode[[]model.GroupResponse](t, w); len(groups) != 0 {
		t.Fatalf("bob still lists %d groups", len(groups))
	}
}

func multipartBody(t *testing.T, field, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestUploadReturnsMessageKind(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")

	tests := []struct {
		name        string
		contentType string
		status      int
		kind        model.MessageKind
	}{
		{"image", "image/png", http.StatusOK, model.MessageKindImage},
		{"voice note", "audio/ogg", http.StatusOK, model.MessageKindAudio},
		{"pdf", "application/pdf", http.StatusOK, model.MessageKindDocument},
		{"html is rejected", "text/html", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, "file", "f.bin", tt.contentType, []byte("data"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", "Bearer "+alice.Token)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			expectStatus(t, w, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			got := decode[model.UploadResponse](t, w)
			if got.Kind != tt.kind || got.MimeType != tt.contentType || !strings.HasPrefix(got.URL, "https://cdn.test/") {
				t.Errorf("upload = %+v", got)
			}
		})
	}
}

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor reads frames until one of the wanted type arrives
func waitFor(t *testing.T, conn *websocket.Conn, eventType string) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if f.Type == eventType {
			return f
		}
	}
}

func TestWebSocketDeliversToJoinedRoom(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice, bob, carol := s.register(t, "alice"), s.register(t, "bob"), s.register(t, "carol")
	w := s.do(t, http.MethodPost, "/api/v1/chats", alice.Token, model.CreateChatRequest{UserID: bob.User.ID})
	chat := decode[model.ChatResponse](t, w)

	bobConn := dialWS(t, srv, bob.Token)
	if err := bobConn.WriteJSON(model.WSEvent{Type: model.WSEventJoinChat, Payload: model.RoomRequest{ID: chat.ID}}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, bobConn, model.WSEventResync)

	w = s.do(t, http.MethodPost, "/api/v1/messages", alice.Token, model.SendMessageRequest{ChatID: &chat.ID, Content: "realtime"})
	expectStatus(t, w, http.StatusCreated)

	frame := waitFor(t, bobConn, model.WSEventNewMessage)
	var msg model.MessageResponse
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Content != "realtime" || msg.ChatID == nil || *msg.ChatID != chat.ID {
		t.Fatalf("new_message payload = %+v", msg)
	}

	// an outsider cannot subscribe to the chat
	carolConn := dialWS(t, srv, carol.Token)
	if err := carolConn.WriteJSON(model.WSEvent{Type: model.WSEventJoinChat, Payload: model.RoomRequest{ID: chat.ID}}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, carolConn, model.WSEventError)
	if n := s.hub.RoomSize(model.ChatRef(chat.ID)); n != 1 {
		t.Fatalf("RoomSize = %d, want only bob", n)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/ws?token=garbage", "", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}
