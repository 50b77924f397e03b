package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chatgrid/chat-service/internal/domain"
	"github.com/chatgrid/chat-service/internal/errs"

	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	users map[string]*domain.User // token → user
}

func (f *fakeIdentity) ResolveIdentity(_ context.Context, token string) (*domain.User, error) {
	u, ok := f.users[token]
	if !ok {
		return nil, errs.ErrInvalidToken
	}
	return u, nil
}

type fakeMembership struct {
	mu      sync.Mutex
	members map[[2]int64]bool // {roomID,userID}
}

func (f *fakeMembership) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[[2]int64{roomID, userID}], nil
}

type fakeMessages struct {
	mu     sync.Mutex
	nextID int64
	saved  []*domain.Message
	err    error
}

func (f *fakeMessages) Post(_ context.Context, roomID, userID int64, content string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	m := &domain.Message{
		ID:        f.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.saved = append(f.saved, m)
	return m, nil
}

func newTestServer(t *testing.T) (*Server, *fakeMembership, *fakeMessages) {
	t.Helper()

	identity := &fakeIdentity{users: map[string]*domain.User{}}
	membership := &fakeMembership{members: map[[2]int64]bool{}}
	messages := &fakeMessages{}

	srv := NewServer(NewRegistry(), identity, membership, messages, Options{})
	return srv, membership, messages
}

func join(t *testing.T, srv *Server, roomID, userID int64, username string) (*Session, *fakeTransport) {
	t.Helper()

	tr := &fakeTransport{}
	sess, err := srv.Join(context.Background(), &domain.User{ID: userID, Username: username}, roomID, tr)
	require.NoError(t, err)
	return sess, tr
}

// Полный сценарий: подключение, присутствие, сообщение, typing, отключение.
func TestServer_RoomLifecycle(t *testing.T) {
	srv, _, messages := newTestServer(t)
	ctx := context.Background()

	// U1 подключается первым и видит только себя
	s1, t1 := join(t, srv, 42, 1, "u1")

	ev1 := t1.Events()
	require.Len(t, ev1, 1)
	require.Equal(t, RoomUsersEvent{
		Type:  TypeRoomUsers,
		Users: []UserRef{{UserID: 1, Username: "u1"}},
	}, ev1[0])

	// U2 подключается: U1 получает user_joined, U2 — снапшот из двоих
	s2, t2 := join(t, srv, 42, 2, "u2")

	require.Equal(t, PresenceEvent{Type: TypeUserJoined, Username: "u2", UserID: 2}, t1.Events()[1])
	require.Equal(t, RoomUsersEvent{
		Type:  TypeRoomUsers,
		Users: []UserRef{{UserID: 1, Username: "u1"}, {UserID: 2, Username: "u2"}},
	}, t2.Events()[0])

	// сообщение от U1: каноничная копия уходит обоим, включая отправителя
	srv.handleInbound(ctx, s1, []byte(`{"type":"message","content":"hi"}`))

	require.Len(t, messages.saved, 1)
	require.Equal(t, "hi", messages.saved[0].Content)

	want := MessageEvent{
		Type:      TypeMessage,
		ID:        1,
		Content:   "hi",
		Username:  "u1",
		UserID:    1,
		CreatedAt: "2024-05-01T12:00:00Z",
	}
	require.Equal(t, want, t1.Events()[2])
	require.Equal(t, want, t2.Events()[1])

	// typing от U1 видит только U2
	srv.handleInbound(ctx, s1, []byte(`{"type":"typing","is_typing":true}`))

	require.Equal(t, 0, countByType(t1.Events(), TypeTyping))
	require.Equal(t, TypingEvent{Type: TypeTyping, Username: "u1", IsTyping: true}, t2.Events()[2])

	// U2 отключается: U1 получает user_left, реестр сжимается
	srv.Close(s2)

	require.Equal(t, PresenceEvent{Type: TypeUserLeft, Username: "u2", UserID: 2}, t1.Events()[3])
	require.True(t, t2.Closed())
	require.Equal(t, []*Session{s1}, srv.registry.Sessions(42))
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	srv, _, _ := newTestServer(t)

	s1, t1 := join(t, srv, 1, 1, "u1")
	s2, _ := join(t, srv, 1, 2, "u2")

	// закрытие из нескольких путей — side effects ровно один раз
	srv.Close(s2)
	srv.Close(s2)
	srv.Close(s2)

	require.Equal(t, 1, countByType(t1.Events(), TypeUserLeft))
	require.Equal(t, []*Session{s1}, srv.registry.Sessions(1))
}

func TestServer_SendFailureClosesSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	s1, t1 := join(t, srv, 1, 1, "u1")
	_, t2 := join(t, srv, 1, 2, "u2")

	t2.fail(errors.New("connection reset"))

	// любая рассылка в сторону сбойной сессии инициирует её закрытие
	srv.handleInbound(ctx, s1, []byte(`{"type":"typing","is_typing":true}`))

	require.Eventually(t, func() bool {
		return len(srv.registry.Sessions(1)) == 1 && t2.Closed()
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []*Session{s1}, srv.registry.Sessions(1))
	require.Eventually(t, func() bool {
		return countByType(t1.Events(), TypeUserLeft) == 1
	}, time.Second, 5*time.Millisecond)

	// ровно один user_left, даже если сбой заметили несколько путей
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, countByType(t1.Events(), TypeUserLeft))
}

func TestServer_PersistFailureIsLocalToSender(t *testing.T) {
	srv, _, messages := newTestServer(t)
	ctx := context.Background()

	s1, t1 := join(t, srv, 1, 1, "u1")
	_, t2 := join(t, srv, 1, 2, "u2")

	messages.err = errors.New("db down")

	srv.handleInbound(ctx, s1, []byte(`{"type":"message","content":"hi"}`))

	// отправитель получает error, комната — ничего
	require.Equal(t, 1, countByType(t1.Events(), TypeError))
	require.Equal(t, 0, countByType(t1.Events(), TypeMessage))
	require.Equal(t, 0, countByType(t2.Events(), TypeMessage))
	require.Equal(t, 0, countByType(t2.Events(), TypeError))
}

func TestServer_MalformedInboundDoesNotKillSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	s1, t1 := join(t, srv, 1, 1, "u1")
	_, t2 := join(t, srv, 1, 2, "u2")

	srv.handleInbound(ctx, s1, []byte(`not json`))
	srv.handleInbound(ctx, s1, []byte(`{"type":"dance"}`))

	require.Equal(t, 2, countByType(t1.Events(), TypeError))
	require.Equal(t, 0, countByType(t2.Events(), TypeError))

	// сессия жива и продолжает работать
	srv.handleInbound(ctx, s1, []byte(`{"type":"typing","is_typing":false}`))
	require.Equal(t, 1, countByType(t2.Events(), TypeTyping))
}

func TestServer_AuthorizeRejectsNonMember(t *testing.T) {
	identity := &fakeIdentity{users: map[string]*domain.User{
		"tok-u1": {ID: 1, Username: "u1"},
	}}
	membership := &fakeMembership{members: map[[2]int64]bool{
		{42, 1}: true,
	}}
	srv := NewServer(NewRegistry(), identity, membership, &fakeMessages{}, Options{})

	ctx := context.Background()

	// valid credential, member
	u, err := srv.authorize(ctx, "tok-u1", 42)
	require.NoError(t, err)
	require.Equal(t, int64(1), u.ID)

	// valid credential, not a member — комната существует, но вход закрыт
	_, err = srv.authorize(ctx, "tok-u1", 7)
	require.ErrorIs(t, err, domain.ErrNotRoomMember)

	// invalid credential
	_, err = srv.authorize(ctx, "bogus", 42)
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	// missing credential
	_, err = srv.authorize(ctx, "", 42)
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	// ни одна проверка не трогает реестр
	require.Empty(t, srv.registry.Sessions(42))
	require.Empty(t, srv.registry.Sessions(7))
}

func TestServer_ConcurrentJoinLeave(t *testing.T) {
	srv, _, _ := newTestServer(t)
	const n = 32

	var wg sync.WaitGroup
	sessions := make([]*Session, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := srv.Join(context.Background(),
				&domain.User{ID: int64(i + 1), Username: fmt.Sprintf("u%d", i+1)}, 5, &fakeTransport{})
			require.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()
	require.Len(t, srv.registry.Sessions(5), n)

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			srv.Close(s)
		}(s)
	}
	wg.Wait()

	require.Empty(t, srv.registry.Sessions(5))
}
