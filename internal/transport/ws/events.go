package ws

import (
	"time"

	"github.com/chatgrid/chat-service/internal/domain"
)

// Типы входящих событий (client → server) — закрытое перечисление.
type InboundType string

const (
	InboundMessage InboundType = "message" // сохранить и разослать всем
	InboundTyping  InboundType = "typing"  // разослать всем кроме отправителя, не сохранять
)

type Inbound struct {
	Type     InboundType `json:"type"`
	Content  string      `json:"content,omitempty"`
	IsTyping bool        `json:"is_typing,omitempty"`
}

// Типы исходящих событий (server → client).
const (
	TypeRoomUsers  = "room_users"  // снапшот присутствия, один раз после подключения
	TypeMessage    = "message"     // каноничная серверная копия сообщения
	TypeTyping     = "typing"      // индикатор набора
	TypeUserJoined = "user_joined" // пользователь подключился к комнате
	TypeUserLeft   = "user_left"   // пользователь отключился от комнаты
	TypeError      = "error"       // ошибка только для одной сессии
)

type UserRef struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type RoomUsersEvent struct {
	Type  string    `json:"type"`
	Users []UserRef `json:"users"`
}

type MessageEvent struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	UserID    int64  `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

type PresenceEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newMessageEvent(m *domain.Message, username string) MessageEvent {
	return MessageEvent{
		Type:      TypeMessage,
		ID:        m.ID,
		Content:   m.Content,
		Username:  username,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: msg}
}
