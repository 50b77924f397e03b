package ws

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Identity(t *testing.T) {
	s := NewSession(&fakeTransport{}, 42, 7, "alice")

	require.Equal(t, int64(42), s.RoomID())
	require.Equal(t, int64(7), s.UserID())
	require.Equal(t, "alice", s.Username())
}

func TestSession_SendDeliversInOrder(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr, 1, 1, "u")

	require.NoError(t, s.Send("a"))
	require.NoError(t, s.Send("b"))

	require.Equal(t, []any{"a", "b"}, tr.Events())
}

// Переход Active → Closed выигрывает ровно один из конкурирующих путей.
func TestSession_BeginCloseOnce(t *testing.T) {
	s := NewSession(&fakeTransport{}, 1, 1, "u")

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.beginClose() {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), won.Load())
}

func TestSession_DoneClosesWithTransport(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr, 1, 1, "u")

	select {
	case <-s.Done():
		t.Fatal("Done closed before CloseTransport")
	default:
	}

	require.NoError(t, s.CloseTransport())
	require.True(t, tr.Closed())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after CloseTransport")
	}
}
