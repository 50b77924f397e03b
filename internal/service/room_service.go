package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatgrid/chat-service/internal/domain"
)

type RoomRepo interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id int64) (*domain.Room, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Room, error)
	Delete(ctx context.Context, id int64) error
}

type MembershipRepo interface {
	Exists(ctx context.Context, roomID, userID int64) (bool, error)
	Join(ctx context.Context, m *domain.Membership) error
	Leave(ctx context.Context, roomID, userID int64) error
	ListByRoom(ctx context.Context, roomID int64) ([]domain.Membership, error)
}

type RoomService struct {
	rooms       RoomRepo
	memberships MembershipRepo
}

func NewRoomService(rooms RoomRepo, memberships MembershipRepo) *RoomService {
	return &RoomService{rooms: rooms, memberships: memberships}
}

// CreateRoom создаёт комнату; создатель сразу становится её участником.
func (s *RoomService) CreateRoom(ctx context.Context, name string, description *string, isPrivate bool, createdBy int64) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("room name is required")
	}

	room := &domain.Room{
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   createdBy,
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("rooms.Create: %w", err)
	}

	m := &domain.Membership{RoomID: room.ID, UserID: createdBy}
	if err := s.memberships.Join(ctx, m); err != nil && !errors.Is(err, domain.ErrAlreadyMember) {
		return nil, fmt.Errorf("memberships.Join: %w", err)
	}

	return room, nil
}

// GetRoom возвращает комнату; доступ только участникам.
func (s *RoomService) GetRoom(ctx context.Context, roomID, userID int64) (*domain.Room, error) {
	ok, err := s.memberships.Exists(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return s.rooms.Get(ctx, roomID)
}

// ListRooms возвращает комнаты, в которых состоит пользователь.
func (s *RoomService) ListRooms(ctx context.Context, userID int64) ([]domain.Room, error) {
	return s.rooms.ListForUser(ctx, userID)
}

func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID int64) (*domain.Membership, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}

	m := &domain.Membership{RoomID: roomID, UserID: userID}
	if err := s.memberships.Join(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	return s.memberships.Leave(ctx, roomID, userID)
}

// DeleteRoom удаляет комнату вместе с членствами и сообщениями (ON DELETE
// CASCADE). Разрешено только создателю.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, userID int64) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != userID {
		return domain.ErrNotRoomOwner
	}

	return s.rooms.Delete(ctx, roomID)
}

// Members возвращает список членств комнаты; доступ только участникам.
func (s *RoomService) Members(ctx context.Context, roomID, userID int64) ([]domain.Membership, error) {
	ok, err := s.memberships.Exists(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotRoomMember
	}

	return s.memberships.ListByRoom(ctx, roomID)
}

// IsMember — авторизация по членству; та же проверка, что и на входе в push-канал.
func (s *RoomService) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return s.memberships.Exists(ctx, roomID, userID)
}
