package postgres

import (
	"context"

	"github.com/chatgrid/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save присваивает id и серверный created_at.
func (r *MessageRepository) Save(ctx context.Context, roomID, userID int64, content string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO messages (room_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, room_id, user_id, content, created_at
	`, roomID, userID, content)

	var m domain.Message
	if err := row.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &m, nil
}

// ListRecent возвращает последние limit сообщений комнаты, oldest-first.
func (r *MessageRepository) ListRecent(ctx context.Context, roomID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	// выбираем свежие по убыванию, отдаём по возрастанию
	const query = `
		SELECT m.id, m.room_id, m.user_id, u.username, m.content, m.created_at
		FROM (
			SELECT id, room_id, user_id, content, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) m
		JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.db.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}
