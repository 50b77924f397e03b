package postgres

import (
	"context"
	"errors"

	"github.com/chatgrid/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (name, description, is_private, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		room.Name, toNullStringPtr(room.Description), room.IsPrivate, room.CreatedBy,
	).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id int64) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT id, name, description, is_private, created_by, created_at FROM rooms WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&rm.ID, &rm.Name, &rm.Description, &rm.IsPrivate, &rm.CreatedBy, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// ListForUser возвращает комнаты, в которых состоит пользователь.
func (r *RoomRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Room, error) {
	query := `
		SELECT r.id, r.name, r.description, r.is_private, r.created_by, r.created_at
		FROM rooms r
		JOIN room_memberships m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Description, &rm.IsPrivate, &rm.CreatedBy, &rm.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}

	return rooms, rows.Err()
}

func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, id)
	return err
}
