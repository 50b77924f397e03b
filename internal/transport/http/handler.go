package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chatgrid/chat-service/internal/domain"
	"github.com/chatgrid/chat-service/internal/errs"
	"github.com/chatgrid/chat-service/internal/service"
	httpmw "github.com/chatgrid/chat-service/internal/transport/http/middleware"
	"github.com/chatgrid/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	authSvc *service.AuthService
	roomSvc *service.RoomService
	msgSvc  *service.MessageService
}

func NewHandler(auth *service.AuthService, room *service.RoomService, msg *service.MessageService) *Handler {
	return &Handler{
		authSvc: auth,
		roomSvc: room,
		msgSvc:  msg,
	}
}

// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			httputil.Error(w, http.StatusConflict, "username already taken")
		case errors.Is(err, errs.ErrPasswordTooShort),
			errors.Is(err, errs.ErrInvalidUsername),
			errors.Is(err, errs.ErrInvalidEmail):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("handler.Register:", slog.Any("err", err))
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		User: toUserItem(res.User),
		Token: TokenResponse{
			AccessToken: res.AccessToken,
			TokenType:   "bearer",
			ExpiresIn:   int64(h.authSvc.AccessTTL().Seconds()),
		},
	})
}

// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("handler.Login:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.authSvc.AccessTTL().Seconds()),
	})
}

// GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	u, err := h.authSvc.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		slog.Error("handler.Me:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, toUserItem(u))
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name, req.Description, req.IsPrivate, userID)
	if err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusCreated, toRoomItem(room))
}

// GET /rooms — комнаты, в которых состоит пользователь.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	rooms, err := h.roomSvc.ListRooms(r.Context(), userID)
	if err != nil {
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, toRoomItem(&rm))
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	room, err := h.roomSvc.GetRoom(r.Context(), roomID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotRoomMember):
			httputil.Error(w, http.StatusForbidden, "not a member of this room")
		case errors.Is(err, domain.ErrRoomNotFound):
			httputil.Error(w, http.StatusNotFound, "room not found")
		default:
			slog.Error("handler.GetRoom:", slog.Any("err", err))
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, toRoomItem(room))
}

// DELETE /rooms/{id} — удалить может только создатель.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.roomSvc.DeleteRoom(r.Context(), roomID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			httputil.Error(w, http.StatusNotFound, "room not found")
		case errors.Is(err, domain.ErrNotRoomOwner):
			httputil.Error(w, http.StatusForbidden, "only the room owner can delete it")
		default:
			slog.Error("handler.DeleteRoom:", slog.Any("err", err))
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /rooms/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	members, err := h.roomSvc.Members(r.Context(), roomID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotRoomMember) {
			httputil.Error(w, http.StatusForbidden, "not a member of this room")
			return
		}
		slog.Error("handler.ListMembers:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := MembersResponse{Items: make([]MemberItem, 0, len(members))}
	for _, m := range members {
		resp.Items = append(resp.Items, MemberItem{
			RoomID:   m.RoomID,
			UserID:   m.UserID,
			JoinedAt: m.JoinedAt,
		})
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// POST /rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	if _, err := h.roomSvc.JoinRoom(r.Context(), roomID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			httputil.Error(w, http.StatusNotFound, "room not found")
		case errors.Is(err, domain.ErrAlreadyMember):
			httputil.Error(w, http.StatusConflict, "already a member of this room")
		default:
			slog.Error("handler.JoinRoom:", slog.Any("err", err))
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// DELETE /rooms/{id}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.roomSvc.LeaveRoom(r.Context(), roomID, userID); err != nil {
		if errors.Is(err, domain.ErrNotRoomMember) {
			httputil.Error(w, http.StatusNotFound, "not a member of this room")
			return
		}
		slog.Error("handler.LeaveRoom:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// GET /rooms/{id}/messages?limit= — история, oldest-first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, err := h.msgSvc.History(r.Context(), roomID, userID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotRoomMember) {
			httputil.Error(w, http.StatusForbidden, "not a member of this room")
			return
		}
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := MessagesResponse{Items: make([]MessageItem, 0, len(items))}
	for _, m := range items {
		resp.Items = append(resp.Items, toMessageItem(&m))
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// POST /rooms/{id}/messages — та же авторизация, что и у push-канала.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID, ok := roomIDFromURL(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	msg, err := h.msgSvc.Post(r.Context(), roomID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotRoomMember):
			httputil.Error(w, http.StatusForbidden, "not a member of this room")
		case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("handler.PostMessage:", slog.Any("err", err))
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, toMessageItem(msg))
}

// ---- helpers ----

func roomIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return id, true
}

func toUserItem(u *domain.User) UserItem {
	return UserItem{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func toRoomItem(r *domain.Room) RoomItem {
	return RoomItem{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

func toMessageItem(m *domain.Message) MessageItem {
	return MessageItem{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Username:  m.Username,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
