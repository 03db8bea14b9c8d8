package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"messagerie/internal/config"
	"messagerie/internal/domain"
	"messagerie/internal/hub"
	"messagerie/internal/service"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

type memoryStore struct {
	mu       sync.Mutex
	messages []*domain.Message
}

func (s *memoryStore) Append(_ context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *message
	stored.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *memoryStore) ListByRoom(_ context.Context, roomCode string) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*domain.Message
	for _, m := range s.messages {
		if m.RoomCode == roomCode {
			copied := *m
			result = append(result, &copied)
		}
	}
	return result, nil
}

type noopPresence struct{}

func (noopPresence) AddOnline(context.Context, string, domain.OnlineUser) error { return nil }
func (noopPresence) RemoveOnline(context.Context, string, string) error         { return nil }
func (noopPresence) ListOnline(context.Context, string) ([]domain.OnlineUser, error) {
	return nil, nil
}

// tokenAuth resolves a fixed token map and rejects everything else.
type tokenAuth struct {
	identities map[string]domain.Identity
}

func (a *tokenAuth) Register(context.Context, string, string, string) (*domain.User, error) {
	return nil, errors.ErrInternalServer
}

func (a *tokenAuth) Login(context.Context, string, string) (*service.LoginResponse, error) {
	return nil, errors.ErrInternalServer
}

func (a *tokenAuth) ResolveToken(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := a.identities[token]
	if !ok {
		return nil, errors.ErrUnauthenticated
	}
	return &identity, nil
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newChatServer(t *testing.T) (*httptest.Server, *memoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &memoryStore{}
	cfg := config.HubConfig{
		ClientBuffer: 64,
		StoreBuffer:  256,
		WriteTimeout: time.Second,
		PongTimeout:  time.Minute,
	}
	log := logger.New("error")

	messageHub := hub.New(cfg, store, noopPresence{}, log)
	t.Cleanup(messageHub.Close)

	auth := &tokenAuth{identities: map[string]domain.Identity{
		"alice-token": {UserID: uuid.New(), Email: "alice@example.com"},
		"bob-token":   {UserID: uuid.New(), Email: "bob@example.com"},
	}}

	router := gin.New()
	router.GET("/ws/chat", NewWebSocketHandler(messageHub, auth, cfg, log).HandleChat)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readEventOfType skips presence notices until the wanted event arrives.
func readEventOfType(t *testing.T, conn *websocket.Conn, eventType string) wireEvent {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if ev.Event == eventType {
			return ev
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestJoinRoomReturnsHistoryOverWire(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	conn := dial(t, srv, "alice-token")
	send(t, conn, `{"event":"joinRoom","room":"lobby"}`)

	ev := readEventOfType(t, conn, "roomMessages")
	var history []domain.DisplayMessage
	req.NoError(json.Unmarshal(ev.Data, &history))
	req.Empty(history)
}

func TestSendMessageReachesAllMembersOverWire(t *testing.T) {
	req := require.New(t)
	srv, store := newChatServer(t)

	alice := dial(t, srv, "alice-token")
	send(t, alice, `{"event":"joinRoom","room":"lobby"}`)
	readEventOfType(t, alice, "roomMessages")

	bob := dial(t, srv, "bob-token")
	send(t, bob, `{"event":"joinRoom","room":"lobby"}`)
	readEventOfType(t, bob, "roomMessages")

	send(t, alice, `{"event":"sendMessage","data":{"roomCode":"lobby","message":"hi"}}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEventOfType(t, conn, "message")
		var display domain.DisplayMessage
		req.NoError(json.Unmarshal(ev.Data, &display))
		req.Equal("alice@example.com", display.User)
		req.Equal("hi", display.Message)
	}

	req.Eventually(func() bool {
		messages, _ := store.ListByRoom(context.Background(), "lobby")
		return len(messages) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidMessageReportsErrorToSenderOnly(t *testing.T) {
	req := require.New(t)
	srv, store := newChatServer(t)

	conn := dial(t, srv, "alice-token")
	send(t, conn, `{"event":"joinRoom","room":"lobby"}`)
	readEventOfType(t, conn, "roomMessages")

	send(t, conn, `{"event":"sendMessage","data":{"roomCode":"lobby","message":""}}`)

	ev := readEventOfType(t, conn, "messageError")
	var reason string
	req.NoError(json.Unmarshal(ev.Data, &reason))
	req.Equal(errors.ErrInvalidMessage.Error(), reason)

	messages, err := store.ListByRoom(context.Background(), "lobby")
	req.NoError(err)
	req.Empty(messages)
}

func TestUnauthenticatedConnectionCannotJoinOrSend(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	conn := dial(t, srv, "")

	send(t, conn, `{"event":"joinRoom","room":"lobby"}`)
	ev := readEventOfType(t, conn, "messageError")
	var reason string
	req.NoError(json.Unmarshal(ev.Data, &reason))
	req.Equal(errors.ErrUnauthenticated.Error(), reason)

	send(t, conn, `{"event":"sendMessage","data":{"roomCode":"lobby","message":"hi"}}`)
	ev = readEventOfType(t, conn, "messageError")
	req.NoError(json.Unmarshal(ev.Data, &reason))
	req.Equal(errors.ErrUnauthenticated.Error(), reason)
}

func TestDisconnectCleansUpMembershipOverWire(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	alice := dial(t, srv, "alice-token")
	send(t, alice, `{"event":"joinRoom","room":"lobby"}`)
	readEventOfType(t, alice, "roomMessages")

	bob := dial(t, srv, "bob-token")
	send(t, bob, `{"event":"joinRoom","room":"lobby"}`)
	readEventOfType(t, bob, "roomMessages")
	readEventOfType(t, alice, "userJoined")

	req.NoError(bob.Close())

	// alice eventually sees bob leave, then remains the only member
	ev := readEventOfType(t, alice, "userLeft")
	var notice hub.PresenceNotice
	req.NoError(json.Unmarshal(ev.Data, &notice))
	req.Equal("bob@example.com", notice.User)
	req.Equal("lobby", notice.Room)
}

func TestUnknownEventIsReported(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	conn := dial(t, srv, "alice-token")
	send(t, conn, `{"event":"whatever"}`)

	ev := readEventOfType(t, conn, "messageError")
	var reason string
	req.NoError(json.Unmarshal(ev.Data, &reason))
	req.Equal("unknown event", reason)
}
