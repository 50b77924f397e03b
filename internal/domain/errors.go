package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotRoomMember  = errors.New("user is not a room member")
	ErrNotRoomOwner   = errors.New("user is not the room owner")
	ErrAlreadyMember  = errors.New("user already joined the room")
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)
