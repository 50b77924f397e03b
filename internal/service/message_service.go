package service

import (
	"context"
	"strings"

	"github.com/chatgrid/chat-service/internal/domain"
)

const maxMessageLen = 4000

type MessageRepo interface {
	Save(ctx context.Context, roomID, userID int64, content string) (*domain.Message, error)
	ListRecent(ctx context.Context, roomID int64, limit int) ([]domain.Message, error)
}

type MessageService struct {
	messages    MessageRepo
	memberships MembershipRepo
}

func NewMessageService(messages MessageRepo, memberships MembershipRepo) *MessageService {
	return &MessageService{messages: messages, memberships: memberships}
}

// Post сохраняет сообщение; id и created_at присваивает сервер.
// Писать могут только участники комнаты — то же правило, что и в push-канале.
func (s *MessageService) Post(ctx context.Context, roomID, userID int64, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(content) > maxMessageLen {
		return nil, domain.ErrMessageTooLong
	}

	ok, err := s.memberships.Exists(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return s.messages.Save(ctx, roomID, userID, content)
}

// History возвращает последние limit сообщений комнаты, oldest-first.
// Читать могут только участники комнаты.
func (s *MessageService) History(ctx context.Context, roomID, userID int64, limit int) ([]domain.Message, error) {
	ok, err := s.memberships.Exists(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return s.messages.ListRecent(ctx, roomID, limit)
}
