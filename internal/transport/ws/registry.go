package ws

import (
	"errors"
	"sync"
)

// ErrAlreadyRegistered — нарушение инварианта: сессия может находиться
// не более чем в одной комнате одновременно.
var ErrAlreadyRegistered = errors.New("ws: session already registered")

const shardCount = 16

// Registry — авторитетный in-memory индекс roomID → сессии комнаты.
// Шардирован по roomID: рассылочный шторм в одной комнате не блокирует
// подключения в других. Порядок в срезе — порядок регистрации.
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	rooms map[int64][]*Session
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].rooms = make(map[int64][]*Session)
	}
	return r
}

func (r *Registry) shardFor(roomID int64) *registryShard {
	return &r.shards[uint64(roomID)%shardCount]
}

func (r *Registry) Register(roomID int64, s *Session) error {
	if s.RoomID() != roomID {
		return ErrAlreadyRegistered
	}

	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, existing := range sh.rooms[roomID] {
		if existing == s {
			return ErrAlreadyRegistered
		}
	}
	sh.rooms[roomID] = append(sh.rooms[roomID], s)

	return nil
}

// Deregister убирает сессию из её комнаты; пустая комната удаляется
// целиком, чтобы память росла по активным комнатам, а не по историческим.
func (r *Registry) Deregister(s *Session) bool {
	sh := r.shardFor(s.RoomID())
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sessions, ok := sh.rooms[s.RoomID()]
	if !ok {
		return false
	}
	for i, existing := range sessions {
		if existing == s {
			sh.rooms[s.RoomID()] = append(sessions[:i:i], sessions[i+1:]...)
			if len(sh.rooms[s.RoomID()]) == 0 {
				delete(sh.rooms, s.RoomID())
			}
			return true
		}
	}

	return false
}

// Sessions возвращает снапшот-копию: итерация по результату не гонится
// с параллельной регистрацией/дерегистрацией.
func (r *Registry) Sessions(roomID int64) []*Session {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	sessions := sh.rooms[roomID]
	if len(sessions) == 0 {
		return nil
	}
	out := make([]*Session, len(sessions))
	copy(out, sessions)

	return out
}

// Presence — производная проекция комнаты; всегда пересчитывается из
// реестра, отдельно нигде не хранится.
func (r *Registry) Presence(roomID int64) []UserRef {
	sessions := r.Sessions(roomID)
	users := make([]UserRef, 0, len(sessions))
	for _, s := range sessions {
		users = append(users, UserRef{UserID: s.UserID(), Username: s.Username()})
	}

	return users
}
