package ws

import (
	"sync/atomic"
)

// Transport — то, чем владеет сессия; *websocket.Conn удовлетворяет
// интерфейсу через обёртку connTransport, тесты подставляют фейк.
type Transport interface {
	WriteJSON(v any) error
	Close() error
}

const (
	stateActive int32 = iota
	stateClosed
)

// Session — одно живое подключение, привязанное ровно к одной паре
// (user, room). Идентичность неизменна после создания.
type Session struct {
	transport Transport
	roomID    int64
	userID    int64
	username  string

	sendMu chan struct{} // сериализует отправку: FIFO в рамках сессии
	closed chan struct{}
	state  atomic.Int32
}

func NewSession(t Transport, roomID, userID int64, username string) *Session {
	return &Session{
		transport: t,
		roomID:    roomID,
		userID:    userID,
		username:  username,
		sendMu:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

func (s *Session) Send(v any) error {
	s.sendMu <- struct{}{}
	defer func() { <-s.sendMu }()

	return s.transport.WriteJSON(v)
}

// beginClose — одноразовый переход Active → Closed. Возвращает true только
// тому пути (ошибка чтения, ошибка отправки, явное закрытие), который
// обнаружил разрыв первым; остальные пути получают false и ничего не делают.
func (s *Session) beginClose() bool {
	return s.state.CompareAndSwap(stateActive, stateClosed)
}

func (s *Session) CloseTransport() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}

	return s.transport.Close()
}

// Done закрывается вместе с транспортом; на нём завершается keepalive-цикл.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) RoomID() int64    { return s.roomID }
func (s *Session) UserID() int64    { return s.userID }
func (s *Session) Username() string { return s.username }
