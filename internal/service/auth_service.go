package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/chatgrid/chat-service/internal/domain"
	"github.com/chatgrid/chat-service/internal/errs"
	"github.com/chatgrid/chat-service/internal/security"
)

type UserRepo interface {
	Create(ctx context.Context, u *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type RegisterResult struct {
	User        *domain.User
	AccessToken string
}

type LoginResult struct {
	User        *domain.User
	AccessToken string
}

type AuthService struct {
	users      UserRepo
	jwt        *security.JWTSigner
	passPolicy security.BcryptConfig
	now        func() time.Time
}

func NewAuthService(
	users UserRepo,
	jwt *security.JWTSigner,
	passPolicy security.BcryptConfig,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		users:      users,
		jwt:        jwt,
		passPolicy: passPolicy,
		now:        now,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		slog.Error("auth.register.existsByUsername failed", slog.Any("err", err))
		return nil, err
	}
	if exists {
		return nil, errs.ErrAlreadyExists
	}

	hash, err := security.HashPassword(password, &s.passPolicy)
	if err != nil {
		return nil, err
	}

	u, err := domain.NewUser(username, email, hash, s.now())
	if err != nil {
		return nil, err
	}

	id, err := s.users.Create(ctx, u)
	if err != nil {
		slog.Error("auth.register.createUser failed", slog.Any("err", err))
		return nil, err
	}
	u.ID = id

	access, err := s.jwt.SignAccessToken(u.ID, s.now())
	if err != nil {
		slog.Error("auth.register.signAccessToken failed", slog.Any("err", err))
		return nil, err
	}

	return &RegisterResult{User: u, AccessToken: access}, nil
}

// Login аутентифицирует по username+пароль и выпускает access-токен.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, errs.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, errs.ErrInvalidCredentials
	}

	if err := security.ComparePassword(u.PasswordHash, password); err != nil {
		return nil, errs.ErrInvalidCredentials
	}

	access, err := s.jwt.SignAccessToken(u.ID, s.now())
	if err != nil {
		slog.Error("auth.login.signAccessToken failed", slog.Any("err", err))
		return nil, err
	}

	return &LoginResult{User: u, AccessToken: access}, nil
}

// Me возвращает профиль пользователя.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) AccessTTL() time.Duration { return s.jwt.TTL() }

// UserIDFromAccessToken парсит access JWT и возвращает userID.
func (s *AuthService) UserIDFromAccessToken(token string) (int64, error) {
	claims, err := s.jwt.ParseAndValidate(token)
	if err != nil {
		return 0, err
	}

	return security.SubjectAsUserID(claims)
}

// ResolveIdentity валидирует credential и резолвит его в пользователя.
// Единая точка входа для bearer-мидлвари и push-канала.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.UserIDFromAccessToken(token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errs.ErrUserInactive
	}

	return u, nil
}
