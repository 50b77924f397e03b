package domain

import "time"

// Membership — долговременная запись о том, что пользователь состоит в комнате.
// Не зависит от живых подключений: членство переживает disconnect.
type Membership struct {
	RoomID   int64     `db:"room_id"`
	UserID   int64     `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}
