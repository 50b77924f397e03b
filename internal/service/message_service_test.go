package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatgrid/chat-service/internal/domain"

	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	byRoom map[int64][]domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byRoom: map[int64][]domain.Message{}}
}

func (r *fakeMessageRepo) Save(_ context.Context, roomID, userID int64, content string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m := domain.Message{
		ID:        r.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	r.byRoom[roomID] = append(r.byRoom[roomID], m)
	return &m, nil
}

func (r *fakeMessageRepo) ListRecent(_ context.Context, roomID int64, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.byRoom[roomID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.Message, len(all))
	copy(out, all)
	return out, nil
}

func newTestMessageService() (*MessageService, *fakeMembershipRepo) {
	memberships := newFakeMembershipRepo()
	return NewMessageService(newFakeMessageRepo(), memberships), memberships
}

func TestMessageService_Post(t *testing.T) {
	svc, memberships := newTestMessageService()
	ctx := context.Background()

	require.NoError(t, memberships.Join(ctx, &domain.Membership{RoomID: 1, UserID: 1}))

	m, err := svc.Post(ctx, 1, 1, "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", m.Content, "content is trimmed")
	require.NotZero(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())
}

func TestMessageService_PostValidation(t *testing.T) {
	svc, memberships := newTestMessageService()
	ctx := context.Background()

	require.NoError(t, memberships.Join(ctx, &domain.Membership{RoomID: 1, UserID: 1}))

	_, err := svc.Post(ctx, 1, 1, "   ")
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = svc.Post(ctx, 1, 1, strings.Repeat("x", maxMessageLen+1))
	require.ErrorIs(t, err, domain.ErrMessageTooLong)

	// не участник — не пишет
	_, err = svc.Post(ctx, 1, 2, "hello")
	require.ErrorIs(t, err, domain.ErrNotRoomMember)
}

func TestMessageService_History(t *testing.T) {
	svc, memberships := newTestMessageService()
	ctx := context.Background()

	require.NoError(t, memberships.Join(ctx, &domain.Membership{RoomID: 1, UserID: 1}))

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.Post(ctx, 1, 1, text)
		require.NoError(t, err)
	}

	// последние limit штук, oldest-first
	items, err := svc.History(ctx, 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "two", items[0].Content)
	require.Equal(t, "three", items[1].Content)

	_, err = svc.History(ctx, 1, 9, 10)
	require.ErrorIs(t, err, domain.ErrNotRoomMember)
}
