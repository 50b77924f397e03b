package postgres

import (
	"context"

	"github.com/chatgrid/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MembershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Exists — единая проверка авторизации по членству: её используют и
// request/response ручки, и вход в push-канал.
func (r *MembershipRepository) Exists(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_memberships WHERE room_id=$1 AND user_id=$2)`,
		roomID, userID).Scan(&exists)
	return exists, err
}

func (r *MembershipRepository) Join(ctx context.Context, m *domain.Membership) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO room_memberships (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, m.RoomID, m.UserID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyMember
	}

	return nil
}

func (r *MembershipRepository) Leave(ctx context.Context, roomID, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM room_memberships WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotRoomMember
	}

	return nil
}

func (r *MembershipRepository) ListByRoom(ctx context.Context, roomID int64) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, user_id, joined_at FROM room_memberships WHERE room_id=$1 ORDER BY joined_at ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}

	return list, rows.Err()
}
