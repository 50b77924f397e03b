package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry()

	s1 := NewSession(&fakeTransport{}, 42, 1, "u1")
	s2 := NewSession(&fakeTransport{}, 42, 2, "u2")

	require.NoError(t, r.Register(42, s1))
	require.NoError(t, r.Register(42, s2))

	sessions := r.Sessions(42)
	require.Equal(t, []*Session{s1, s2}, sessions, "insertion order preserved")

	require.True(t, r.Deregister(s1))
	require.Equal(t, []*Session{s2}, r.Sessions(42))

	// повторная дерегистрация ничего не делает
	require.False(t, r.Deregister(s1))
}

func TestRegistry_RegisterTwiceFails(t *testing.T) {
	r := NewRegistry()
	s := NewSession(&fakeTransport{}, 7, 1, "u1")

	require.NoError(t, r.Register(7, s))
	require.ErrorIs(t, r.Register(7, s), ErrAlreadyRegistered)

	// сессия привязана к комнате 7 — регистрация под другой комнатой
	// нарушает инвариант "не более одной комнаты одновременно"
	require.ErrorIs(t, r.Register(8, s), ErrAlreadyRegistered)
	require.Empty(t, r.Sessions(8))
}

func TestRegistry_EmptyRoomRemoved(t *testing.T) {
	r := NewRegistry()
	s := NewSession(&fakeTransport{}, 5, 1, "u1")

	require.NoError(t, r.Register(5, s))
	require.True(t, r.Deregister(s))

	sh := r.shardFor(5)
	sh.mu.RLock()
	_, ok := sh.rooms[5]
	sh.mu.RUnlock()
	require.False(t, ok, "empty room entry must be removed")
}

func TestRegistry_SnapshotIsolated(t *testing.T) {
	r := NewRegistry()
	s1 := NewSession(&fakeTransport{}, 1, 1, "u1")
	s2 := NewSession(&fakeTransport{}, 1, 2, "u2")

	require.NoError(t, r.Register(1, s1))
	snap := r.Sessions(1)

	require.NoError(t, r.Register(1, s2))
	require.True(t, r.Deregister(s1))

	// снапшот не меняется вслед за реестром
	require.Equal(t, []*Session{s1}, snap)
}

func TestRegistry_Presence(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.Presence(99))

	require.NoError(t, r.Register(99, NewSession(&fakeTransport{}, 99, 10, "alice")))
	require.NoError(t, r.Register(99, NewSession(&fakeTransport{}, 99, 20, "bob")))

	require.Equal(t, []UserRef{
		{UserID: 10, Username: "alice"},
		{UserID: 20, Username: "bob"},
	}, r.Presence(99))
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	const n = 64

	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = NewSession(&fakeTransport{}, 3, int64(i+1), fmt.Sprintf("u%d", i+1))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			require.NoError(t, r.Register(3, s))
		}(s)
	}
	wg.Wait()
	require.Len(t, r.Sessions(3), n)

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			require.True(t, r.Deregister(s))
		}(s)
	}
	wg.Wait()

	require.Empty(t, r.Sessions(3))
	sh := r.shardFor(3)
	sh.mu.RLock()
	_, ok := sh.rooms[3]
	sh.mu.RUnlock()
	require.False(t, ok, "no residual empty-set leak")
}
