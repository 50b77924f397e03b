package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chatgrid/chat-service/internal/domain"
	"github.com/chatgrid/chat-service/internal/errs"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Коллабораторы менеджера подключений. Auth и Persistence потребляются,
// но не реализуются здесь; в тестах подставляются фейки.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*domain.User, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

type MessageStore interface {
	Post(ctx context.Context, roomID, userID int64, content string) (*domain.Message, error)
}

type Options struct {
	// PingInterval > 0 включает keepalive (ping + дедлайны чтения).
	// 0 — ядро не навязывает таймауты простаивающим подключениям.
	PingInterval   time.Duration
	MaxMessageSize int64
}

// Server — менеджер жизненного цикла push-подключений: Connecting → Active → Closed.
type Server struct {
	upgrader    websocket.Upgrader
	registry    *Registry
	broadcaster *Broadcaster

	identity   IdentityResolver
	membership MembershipChecker
	messages   MessageStore

	pingEvery      time.Duration
	maxMessageSize int64
}

func NewServer(registry *Registry, identity IdentityResolver, membership MembershipChecker, messages MessageStore, opts Options) *Server {
	s := &Server{
		registry:   registry,
		identity:   identity,
		membership: membership,
		messages:   messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:      opts.PingInterval,
		maxMessageSize: opts.MaxMessageSize,
	}
	s.broadcaster = NewBroadcaster(registry, s.Close)

	return s
}

// WS endpoint: GET /ws/rooms/{id}?token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || roomID <= 0 {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	// Connecting: проверяем credential и членство до любой работы с реестром.
	// AuthError и AuthorizationError снаружи неразличимы — один и тот же
	// policy-violation close, чтобы не раскрывать, какая проверка не прошла.
	user, err := s.authorize(r.Context(), strings.TrimSpace(r.URL.Query().Get("token")), roomID)
	if err != nil {
		slog.Debug("ws connect refused", "room", roomID, "err", err)
		closePolicyViolation(conn)
		return
	}

	if s.maxMessageSize > 0 {
		conn.SetReadLimit(s.maxMessageSize)
	}

	sess, err := s.Join(r.Context(), user, roomID, newConnTransport(conn))
	if err != nil {
		slog.Error("ws join failed", "room", roomID, "user", user.ID, "err", err)
		closePolicyViolation(conn)
		return
	}

	if s.pingEvery > 0 {
		conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
			return nil
		})
		go s.pingLoop(r.Context(), conn, sess)
	}

	// Active: цикл приёма. Закрытие транспорта детерминированно
	// разблокирует ReadMessage.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleInbound(r.Context(), sess, data)
	}

	s.Close(sess)
}

func (s *Server) authorize(ctx context.Context, token string, roomID int64) (*domain.User, error) {
	if token == "" {
		return nil, errs.ErrInvalidToken
	}
	user, err := s.identity.ResolveIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := s.membership.IsMember(ctx, roomID, user.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return user, nil
}

// Join регистрирует сессию и делает её видимой комнате: остальные получают
// user_joined, сама сессия — снапшот room_users (включая себя).
func (s *Server) Join(ctx context.Context, user *domain.User, roomID int64, t Transport) (*Session, error) {
	sess := NewSession(t, roomID, user.ID, user.Username)
	if err := s.registry.Register(roomID, sess); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(roomID, PresenceEvent{
		Type:     TypeUserJoined,
		Username: user.Username,
		UserID:   user.ID,
	}, sess)

	if err := sess.Send(RoomUsersEvent{
		Type:  TypeRoomUsers,
		Users: s.registry.Presence(roomID),
	}); err != nil {
		slog.Warn("ws send room_users failed", "room", roomID, "user", user.ID, "err", err)
	}

	return sess, nil
}

// handleInbound классифицирует входящее событие. Любой сбой локален для
// сессии: цикл приёма продолжается, комната ничего не видит.
func (s *Server) handleInbound(ctx context.Context, sess *Session, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		_ = sess.Send(newErrorEvent("malformed event"))
		return
	}

	switch in.Type {
	case InboundMessage:
		// durable: сначала персист (id + серверный created_at), потом
		// рассылка каноничной копии всем, включая отправителя.
		msg, err := s.messages.Post(ctx, sess.RoomID(), sess.UserID(), in.Content)
		if err != nil {
			slog.Warn("ws message save failed", "room", sess.RoomID(), "user", sess.UserID(), "err", err)
			_ = sess.Send(newErrorEvent("message not accepted"))
			return
		}
		s.broadcaster.Broadcast(sess.RoomID(), newMessageEvent(msg, sess.Username()), nil)

	case InboundTyping:
		// ephemeral: без персиста, отправителю не возвращается.
		s.broadcaster.Broadcast(sess.RoomID(), TypingEvent{
			Type:     TypeTyping,
			Username: sess.Username(),
			IsTyping: in.IsTyping,
		}, sess)

	default:
		_ = sess.Send(newErrorEvent("unknown event type"))
	}
}

// Close — идемпотентное закрытие: его зовут и цикл приёма, и сбой отправки
// при рассылке, и graceful shutdown, но дерегистрация с user_left
// выполняются ровно один раз. user_left уходит синхронно, до возврата.
func (s *Server) Close(sess *Session) {
	if !sess.beginClose() {
		return
	}

	s.registry.Deregister(sess)
	s.broadcaster.Broadcast(sess.RoomID(), PresenceEvent{
		Type:     TypeUserLeft,
		Username: sess.Username(),
		UserID:   sess.UserID(),
	}, nil)

	_ = sess.CloseTransport()
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		}
	}
}

func closePolicyViolation(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "policy violation")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

// connTransport — транспорт поверх *websocket.Conn с дедлайном записи.
type connTransport struct {
	conn *websocket.Conn
}

func newConnTransport(conn *websocket.Conn) *connTransport {
	return &connTransport{conn: conn}
}

func (t *connTransport) WriteJSON(v any) error {
	t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return t.conn.WriteJSON(v)
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}
