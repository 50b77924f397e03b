package domain

import "time"

type Message struct {
	ID        int64     `db:"id"`
	RoomID    int64     `db:"room_id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
